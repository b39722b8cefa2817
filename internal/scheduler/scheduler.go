// Package scheduler runs one-shot invitation timeout jobs.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when scheduling on a stopped scheduler.
var ErrClosed = errors.New("scheduler closed")

// JobHandle identifies one scheduled job. A handle superseded by a later
// Schedule call for the same invitation no longer cancels anything.
type JobHandle struct {
	InvitationID uuid.UUID
	Token        string
}

// IsZero reports whether the handle refers to no job.
func (h JobHandle) IsZero() bool {
	return h.InvitationID == uuid.Nil && h.Token == ""
}

// Handler runs when a job becomes due.
type Handler func(ctx context.Context, invitationID uuid.UUID) error

// Scheduler is the contract shared by the memory and redis drivers.
type Scheduler interface {
	Schedule(ctx context.Context, invitationID uuid.UUID, delay time.Duration) (JobHandle, error)
	Cancel(ctx context.Context, handle JobHandle) error
	CancelInvitation(ctx context.Context, invitationID uuid.UUID) error
	SetHandler(h Handler)
}
