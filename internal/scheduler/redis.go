package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	timeoutSetName  = "invitation_timeouts"
	tokenKeyPart    = "token"
	tokenTTLPadding = time.Hour
	defaultBatch    = 100
)

type timeoutStore interface {
	ScheduleAt(ctx context.Context, set, member string, due time.Time) error
	DueMembers(ctx context.Context, set string, now time.Time, limit int64) ([]string, error)
	RemoveMember(ctx context.Context, set, member string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SchedulerKey(parts ...string) string
}

// RedisSchedulerParams configures the redis driver.
type RedisSchedulerParams struct {
	Store        timeoutStore
	Logger       *logger.Logger
	PollInterval time.Duration
	Concurrency  int
	Now          func() time.Time
}

// RedisScheduler keeps due times in a sorted set so jobs survive restarts and
// any API instance can fire them. Pollers claim a member by removing it, so
// each job runs once.
type RedisScheduler struct {
	store        timeoutStore
	logg         *logger.Logger
	pollInterval time.Duration
	concurrency  int
	now          func() time.Time

	mu      sync.RWMutex
	handler Handler
}

// NewRedisScheduler builds the redis driver.
func NewRedisScheduler(params RedisSchedulerParams) (*RedisScheduler, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PollInterval <= 0 {
		params.PollInterval = time.Second
	}
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &RedisScheduler{
		store:        params.Store,
		logg:         params.Logger,
		pollInterval: params.PollInterval,
		concurrency:  params.Concurrency,
		now:          params.Now,
	}, nil
}

// SetHandler registers the callback invoked for due jobs.
func (s *RedisScheduler) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Schedule records the due time and a fresh token for invitationID.
func (s *RedisScheduler) Schedule(ctx context.Context, invitationID uuid.UUID, delay time.Duration) (JobHandle, error) {
	if invitationID == uuid.Nil {
		return JobHandle{}, fmt.Errorf("invitation id is required")
	}
	if delay < 0 {
		delay = 0
	}
	token := uuid.NewString()
	if err := s.store.Set(ctx, s.tokenKey(invitationID), token, delay+tokenTTLPadding); err != nil {
		return JobHandle{}, fmt.Errorf("store job token: %w", err)
	}
	due := s.now().Add(delay)
	if err := s.store.ScheduleAt(ctx, s.setKey(), invitationID.String(), due); err != nil {
		return JobHandle{}, fmt.Errorf("schedule job: %w", err)
	}
	return JobHandle{InvitationID: invitationID, Token: token}, nil
}

// Cancel removes the job behind handle when its token is still current.
func (s *RedisScheduler) Cancel(ctx context.Context, handle JobHandle) error {
	current, err := s.store.Get(ctx, s.tokenKey(handle.InvitationID))
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job token: %w", err)
	}
	if current != handle.Token {
		return nil
	}
	return s.CancelInvitation(ctx, handle.InvitationID)
}

// CancelInvitation removes whatever job is pending for invitationID.
func (s *RedisScheduler) CancelInvitation(ctx context.Context, invitationID uuid.UUID) error {
	if _, err := s.store.RemoveMember(ctx, s.setKey(), invitationID.String()); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if err := s.store.Del(ctx, s.tokenKey(invitationID)); err != nil {
		return fmt.Errorf("remove job token: %w", err)
	}
	return nil
}

// Run polls for due jobs until ctx is canceled.
func (s *RedisScheduler) Run(ctx context.Context) error {
	s.logg.Info(ctx, "redis timeout scheduler started")
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "redis timeout scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil {
				s.logg.Error(ctx, "timeout poll failed", err)
			}
		}
	}
}

// Poll claims every due job and runs its handler. It returns how many jobs
// this call claimed.
func (s *RedisScheduler) Poll(ctx context.Context) (int, error) {
	members, err := s.store.DueMembers(ctx, s.setKey(), s.now(), defaultBatch)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}

	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	claimed := 0
	for _, member := range members {
		invitationID, err := uuid.Parse(member)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "member", member), "dropping malformed timeout job")
			_, _ = s.store.RemoveMember(ctx, s.setKey(), member)
			continue
		}
		won, err := s.store.RemoveMember(ctx, s.setKey(), member)
		if err != nil {
			return claimed, fmt.Errorf("claim job: %w", err)
		}
		if !won {
			continue
		}
		claimed++
		if err := s.store.Del(ctx, s.tokenKey(invitationID)); err != nil {
			s.logg.Warn(s.logg.WithInvitationID(ctx, member), "failed to clear job token")
		}
		if handler == nil {
			s.logg.Warn(s.logg.WithInvitationID(ctx, member), "timeout job fired without a handler")
			continue
		}

		g.Go(func() error {
			jobCtx := s.logg.WithInvitationID(ctx, invitationID.String())
			if err := handler(jobCtx, invitationID); err != nil {
				s.logg.Error(jobCtx, "timeout job failed", err)
			}
			return nil
		})
	}
	return claimed, g.Wait()
}

func (s *RedisScheduler) setKey() string {
	return s.store.SchedulerKey(timeoutSetName)
}

func (s *RedisScheduler) tokenKey(invitationID uuid.UUID) string {
	return s.store.SchedulerKey(tokenKeyPart, invitationID.String())
}
