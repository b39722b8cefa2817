package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubLimiter struct {
	counts map[string]int64
	err    error
}

func (s *stubLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if s.err != nil {
		return false, 0, s.err
	}
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[scope]++
	return s.counts[scope] <= limit, s.counts[scope], nil
}

func serveAs(h http.Handler, userID string) int {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp.Code
}

func TestUserRateLimitBlocksPerUser(t *testing.T) {
	store := &stubLimiter{}
	h := UserRateLimit("send", 2, time.Minute, store, nil)(okHandler(nil))

	for i := 0; i < 2; i++ {
		if code := serveAs(h, "alice"); code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, code)
		}
	}
	if code := serveAs(h, "alice"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if code := serveAs(h, "bob"); code != http.StatusOK {
		t.Fatalf("expected other user to pass, got %d", code)
	}
	if _, ok := store.counts["send:alice"]; !ok {
		t.Fatalf("expected scope keyed by policy and user, got %v", store.counts)
	}
}

func TestUserRateLimitStoreFailure(t *testing.T) {
	h := UserRateLimit("send", 2, time.Minute, &stubLimiter{err: errors.New("down")}, nil)(okHandler(nil))
	if code := serveAs(h, "alice"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", code)
	}
}

func TestUserRateLimitDisabled(t *testing.T) {
	h := UserRateLimit("send", 0, time.Minute, &stubLimiter{err: errors.New("unused")}, nil)(okHandler(nil))
	if code := serveAs(h, "alice"); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
}
