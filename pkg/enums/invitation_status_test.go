package enums

import "testing"

func TestCanTransitionOnlyLeavesPending(t *testing.T) {
	for _, from := range validInvitationStatuses {
		for _, to := range validInvitationStatuses {
			want := from == InvitationStatusPending && to != InvitationStatusPending
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition(InvitationStatusPending, "BOGUS") {
		t.Fatal("unknown target must not be a valid edge")
	}
}

func TestClientSettableExcludesTimeoutAndPending(t *testing.T) {
	if InvitationStatusTimeout.ClientSettable() {
		t.Fatal("timeout is engine-only")
	}
	if InvitationStatusPending.ClientSettable() {
		t.Fatal("pending cannot be requested on an existing invitation")
	}
	for _, s := range []InvitationStatus{InvitationStatusAccepted, InvitationStatusRejected, InvitationStatusCancelled} {
		if !s.ClientSettable() {
			t.Fatalf("%s should be client settable", s)
		}
	}
}

func TestParseInvitationStatus(t *testing.T) {
	got, err := ParseInvitationStatus(" accepted ")
	if err != nil || got != InvitationStatusAccepted {
		t.Fatalf("expected ACCEPTED, got %q err=%v", got, err)
	}
	if _, err := ParseInvitationStatus("maybe"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
