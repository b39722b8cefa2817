package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const invitationSweepBatch = 200

type pendingInvitationFinder interface {
	FindPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Invitation, error)
}

type invitationExpirer interface {
	HandleTimeout(ctx context.Context, invitationID uuid.UUID) error
}

// InvitationTimeoutSweepJobParams configure the sweep.
type InvitationTimeoutSweepJobParams struct {
	Logger       *logger.Logger
	Finder       pendingInvitationFinder
	Expirer      invitationExpirer
	TimeoutDelay time.Duration
	Grace        time.Duration
	BatchSize    int
}

// NewInvitationTimeoutSweepJob expires PENDING invitations whose timeout job was
// lost, for example when the in-memory scheduler restarted.
func NewInvitationTimeoutSweepJob(params InvitationTimeoutSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Finder == nil {
		return nil, fmt.Errorf("invitation finder required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("invitation expirer required")
	}
	if params.TimeoutDelay <= 0 {
		return nil, fmt.Errorf("timeout delay must be positive")
	}
	if params.Grace < 0 {
		params.Grace = 0
	}
	if params.BatchSize <= 0 {
		params.BatchSize = invitationSweepBatch
	}
	return &invitationTimeoutSweepJob{
		logg:    params.Logger,
		finder:  params.Finder,
		expirer: params.Expirer,
		maxAge:  params.TimeoutDelay + params.Grace,
		batch:   params.BatchSize,
		now:     time.Now,
	}, nil
}

type invitationTimeoutSweepJob struct {
	logg    *logger.Logger
	finder  pendingInvitationFinder
	expirer invitationExpirer
	maxAge  time.Duration
	batch   int
	now     func() time.Time
}

func (j *invitationTimeoutSweepJob) Name() string { return "invitation-timeout-sweep" }

func (j *invitationTimeoutSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	stale, err := j.finder.FindPendingCreatedBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("find stale invitations: %w", err)
	}

	var errs error
	for _, inv := range stale {
		if err := j.expirer.HandleTimeout(ctx, inv.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", inv.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"found":  len(stale),
		"failed": len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "invitation timeout sweep complete")
	return errs
}
