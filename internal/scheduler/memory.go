package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/google/uuid"
)

type memoryJob struct {
	token string
	timer *time.Timer
}

// MemoryScheduler keeps one timer per invitation inside the process. Jobs do
// not survive a restart; the cron sweep picks those up.
type MemoryScheduler struct {
	logg *logger.Logger

	mu      sync.Mutex
	jobs    map[uuid.UUID]*memoryJob
	handler Handler
	closed  bool

	inflight sync.WaitGroup
}

// NewMemoryScheduler builds an in-process scheduler.
func NewMemoryScheduler(logg *logger.Logger) *MemoryScheduler {
	return &MemoryScheduler{
		logg: logg,
		jobs: make(map[uuid.UUID]*memoryJob),
	}
}

// SetHandler registers the callback invoked for due jobs.
func (s *MemoryScheduler) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Schedule arms a timer for invitationID, replacing any live job for it.
func (s *MemoryScheduler) Schedule(ctx context.Context, invitationID uuid.UUID, delay time.Duration) (JobHandle, error) {
	if invitationID == uuid.Nil {
		return JobHandle{}, fmt.Errorf("invitation id is required")
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return JobHandle{}, ErrClosed
	}
	if prev, ok := s.jobs[invitationID]; ok {
		prev.timer.Stop()
	}

	token := uuid.NewString()
	job := &memoryJob{token: token}
	job.timer = time.AfterFunc(delay, func() { s.fire(invitationID, token) })
	s.jobs[invitationID] = job

	return JobHandle{InvitationID: invitationID, Token: token}, nil
}

// Cancel stops the job behind handle if it is still the live one.
func (s *MemoryScheduler) Cancel(_ context.Context, handle JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[handle.InvitationID]
	if !ok || job.token != handle.Token {
		return nil
	}
	job.timer.Stop()
	delete(s.jobs, handle.InvitationID)
	return nil
}

// CancelInvitation stops whatever job is live for invitationID.
func (s *MemoryScheduler) CancelInvitation(_ context.Context, invitationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[invitationID]; ok {
		job.timer.Stop()
		delete(s.jobs, invitationID)
	}
	return nil
}

// Pending returns the number of armed jobs.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Close stops every timer and waits for running handlers.
func (s *MemoryScheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	for id, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	s.inflight.Wait()
	return nil
}

func (s *MemoryScheduler) fire(invitationID uuid.UUID, token string) {
	s.mu.Lock()
	job, ok := s.jobs[invitationID]
	if s.closed || !ok || job.token != token {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, invitationID)
	handler := s.handler
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx := context.Background()
	if s.logg != nil {
		ctx = s.logg.WithInvitationID(ctx, invitationID.String())
	}
	if handler == nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "timeout job fired without a handler")
		}
		return
	}
	if err := handler(ctx, invitationID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "timeout job failed", err)
	}
}
