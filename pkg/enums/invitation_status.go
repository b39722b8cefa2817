package enums

import (
	"fmt"
	"strings"
)

// InvitationStatus describes the allowed values for invitations.status.
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "PENDING"
	InvitationStatusAccepted  InvitationStatus = "ACCEPTED"
	InvitationStatusRejected  InvitationStatus = "REJECTED"
	InvitationStatusTimeout   InvitationStatus = "TIMEOUT"
	InvitationStatusCancelled InvitationStatus = "CANCELLED"
)

var validInvitationStatuses = []InvitationStatus{
	InvitationStatusPending,
	InvitationStatusAccepted,
	InvitationStatusRejected,
	InvitationStatusTimeout,
	InvitationStatusCancelled,
}

// IsValid reports whether the value matches the canonical invitation status enum.
func (s InvitationStatus) IsValid() bool {
	for _, candidate := range validInvitationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can no longer change.
func (s InvitationStatus) IsTerminal() bool {
	return s.IsValid() && s != InvitationStatusPending
}

// ClientSettable reports whether a participant may request this status on an
// existing invitation. TIMEOUT is reserved for the scheduler.
func (s InvitationStatus) ClientSettable() bool {
	switch s {
	case InvitationStatusAccepted, InvitationStatusRejected, InvitationStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to InvitationStatus) bool {
	return from == InvitationStatusPending && to.IsTerminal()
}

// ParseInvitationStatus converts the raw string to InvitationStatus. Matching is
// case-insensitive.
func ParseInvitationStatus(value string) (InvitationStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validInvitationStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invitation status %q", value)
}
