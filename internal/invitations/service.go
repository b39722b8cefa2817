package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/peerlink-backend/internal/rooms"
	"github.com/angelmondragon/peerlink-backend/internal/scheduler"
	"github.com/angelmondragon/peerlink-backend/internal/users"
	"github.com/angelmondragon/peerlink-backend/pkg/db"
	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/metrics"
	pkgpagination "github.com/angelmondragon/peerlink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	pendingPairConstraint = "uniq_invitations_pending_pair"
	msgInvitationNotFound = "invitation not found"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Publisher hands encoded events to the notification bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// TimeoutScheduler arms and disarms invitation timeout jobs.
type TimeoutScheduler interface {
	Schedule(ctx context.Context, invitationID uuid.UUID, delay time.Duration) (scheduler.JobHandle, error)
	Cancel(ctx context.Context, handle scheduler.JobHandle) error
	CancelInvitation(ctx context.Context, invitationID uuid.UUID) error
}

// Service is the invitation lifecycle engine.
type Service interface {
	Send(ctx context.Context, actorID uuid.UUID, input SendInput) (Result, error)
	HandleTimeout(ctx context.Context, invitationID uuid.UUID) error
	Get(ctx context.Context, actorID, invitationID uuid.UUID) (Result, error)
	List(ctx context.Context, params ListParams) (ListResult, error)
}

// ServiceParams groups dependencies for the invitation service.
type ServiceParams struct {
	DB           txRunner
	Invitations  Repository
	Users        users.Repository
	Rooms        rooms.Repository
	Scheduler    TimeoutScheduler
	Publisher    Publisher
	Logger       *logger.Logger
	Metrics      *metrics.InvitationMetrics
	TimeoutDelay time.Duration
	Now          func() time.Time
}

type service struct {
	db          txRunner
	invitations Repository
	users       users.Repository
	rooms       rooms.Repository
	scheduler   TimeoutScheduler
	publisher   Publisher
	logg        *logger.Logger
	metrics     *metrics.InvitationMetrics
	delay       time.Duration
	now         func() time.Time
}

// NewService builds the invitation service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Invitations == nil {
		return nil, fmt.Errorf("invitation repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Rooms == nil {
		return nil, fmt.Errorf("room repository required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("timeout scheduler required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TimeoutDelay <= 0 {
		return nil, fmt.Errorf("timeout delay must be positive")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		db:          params.DB,
		invitations: params.Invitations,
		users:       params.Users,
		rooms:       params.Rooms,
		scheduler:   params.Scheduler,
		publisher:   params.Publisher,
		logg:        params.Logger,
		metrics:     params.Metrics,
		delay:       params.TimeoutDelay,
		now:         params.Now,
	}, nil
}

// Send creates an invitation when input.ID is nil and applies input.Status to
// an existing one otherwise.
func (s *service) Send(ctx context.Context, actorID uuid.UUID, input SendInput) (Result, error) {
	if actorID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing")
	}
	ctx = s.logg.WithUserID(ctx, actorID.String())
	if input.ID == nil {
		return s.create(ctx, actorID, input)
	}
	return s.update(ctx, actorID, *input.ID, input.Status)
}

func (s *service) create(ctx context.Context, actorID uuid.UUID, input SendInput) (Result, error) {
	if input.Status != "" && input.Status != enums.InvitationStatusPending {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "new invitations must be PENDING")
	}
	if input.ReceiverID == nil || *input.ReceiverID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "receiver_id is required")
	}
	receiverID := *input.ReceiverID
	if receiverID == actorID {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "cannot invite yourself")
	}

	var (
		created *models.Invitation
		handle  scheduler.JobHandle
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)
		invRepo := s.invitations.WithTx(tx)

		sender, err := userRepo.FindByID(ctx, actorID)
		if err != nil {
			return mapLoadErr(err, "user not found", "load sender")
		}
		receiver, err := userRepo.FindByID(ctx, receiverID)
		if err != nil {
			return mapLoadErr(err, "receiver not found", "load receiver")
		}

		existing, err := invRepo.FindPendingByPair(ctx, actorID, receiverID)
		switch {
		case err == nil:
			return pendingConflict(existing.ID, nil)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending invitation")
		}

		now := s.now().UTC()
		inv := &models.Invitation{
			ID:         uuid.New(),
			SenderID:   sender.ID,
			ReceiverID: receiver.ID,
			Status:     enums.InvitationStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := invRepo.Create(ctx, inv); err != nil {
			if db.IsUniqueViolation(err, pendingPairConstraint) {
				return pendingConflict(uuid.Nil, err)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invitation")
		}
		inv.Sender = sender
		inv.Receiver = receiver

		handle, err = s.scheduler.Schedule(ctx, inv.ID, s.delay)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule invitation timeout")
		}
		created = inv
		return nil
	})
	if err != nil {
		if !handle.IsZero() {
			if cancelErr := s.scheduler.Cancel(ctx, handle); cancelErr != nil {
				s.logg.Error(ctx, "failed to cancel timeout after rollback", cancelErr)
			}
		}
		return Result{}, err
	}

	ctx = s.logg.WithInvitationID(ctx, created.ID.String())
	s.metrics.IncTransition(string(enums.InvitationStatusPending))
	s.logg.Info(ctx, "invitation created")

	result := toResult(created, nil)
	s.publish(ctx, NewEvent(enums.InvitationEventCreated, result, s.now()))
	return result, nil
}

func (s *service) update(ctx context.Context, actorID, invitationID uuid.UUID, target enums.InvitationStatus) (Result, error) {
	if !target.ClientSettable() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "status must be ACCEPTED, REJECTED or CANCELLED").
			WithDetails(map[string]any{"status": target})
	}
	ctx = s.logg.WithInvitationID(ctx, invitationID.String())

	var (
		current *models.Invitation
		room    *models.Room
		won     bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		invRepo := s.invitations.WithTx(tx)
		roomRepo := s.rooms.WithTx(tx)

		if _, err := s.users.WithTx(tx).FindByID(ctx, actorID); err != nil {
			return mapLoadErr(err, msgInvitationNotFound, "load actor")
		}
		inv, err := invRepo.FindByID(ctx, invitationID)
		if err != nil {
			return mapLoadErr(err, msgInvitationNotFound, "load invitation")
		}
		if !inv.HasParticipant(actorID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, msgInvitationNotFound)
		}

		now := s.now().UTC()
		won, err = invRepo.TransitionFromPending(ctx, invitationID, target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invitation status")
		}

		if !won {
			latest, err := invRepo.FindByID(ctx, invitationID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invitation")
			}
			if latest.Status != target {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "invitation is no longer pending").
					WithDetails(map[string]any{"from": latest.Status, "to": target})
			}
			current = latest
			if target == enums.InvitationStatusAccepted {
				room, err = roomRepo.FindByInvitation(ctx, invitationID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load room")
				}
			}
			return nil
		}

		inv.Status = target
		inv.UpdatedAt = now
		current = inv
		if target == enums.InvitationStatusAccepted {
			room, err = roomRepo.Create(ctx, invitationID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create room")
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	result := toResult(current, room)
	if !won {
		s.logg.Debug(ctx, "invitation status resubmitted")
		return result, nil
	}

	s.metrics.IncTransition(string(target))
	s.logg.Info(s.logg.WithField(ctx, "status", string(target)), "invitation status changed")

	if err := s.scheduler.CancelInvitation(ctx, invitationID); err != nil {
		s.logg.Error(ctx, "failed to cancel invitation timeout", err)
	}
	s.publish(ctx, NewEvent(enums.InvitationEventUpdated, result, s.now()))
	return result, nil
}

// HandleTimeout expires the invitation if it is still PENDING. Losing the race
// to a participant is not an error.
func (s *service) HandleTimeout(ctx context.Context, invitationID uuid.UUID) error {
	ctx = s.logg.WithInvitationID(ctx, invitationID.String())

	won, err := s.invitations.TransitionFromPending(ctx, invitationID, enums.InvitationStatusTimeout, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire invitation")
	}
	if !won {
		s.metrics.IncTimeout(metrics.TimeoutOutcomeNoop)
		s.logg.Debug(ctx, "invitation already settled before timeout")
		return nil
	}

	s.metrics.IncTimeout(metrics.TimeoutOutcomeExpired)
	s.metrics.IncTransition(string(enums.InvitationStatusTimeout))
	s.logg.Info(ctx, "invitation timed out")

	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload expired invitation")
	}
	s.publish(ctx, NewEvent(enums.InvitationEventTimeout, toResult(inv, nil), s.now()))
	return nil
}

// Get returns an invitation the actor participates in.
func (s *service) Get(ctx context.Context, actorID, invitationID uuid.UUID) (Result, error) {
	if actorID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing")
	}
	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return Result{}, mapLoadErr(err, msgInvitationNotFound, "load invitation")
	}
	if !inv.HasParticipant(actorID) {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, msgInvitationNotFound)
	}

	var room *models.Room
	if inv.Status == enums.InvitationStatusAccepted {
		room, err = s.rooms.FindByInvitation(ctx, inv.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load room")
		}
	}
	return toResult(inv, room), nil
}

// List pages through the actor's invitations, newest first.
func (s *service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.ActorID == uuid.Nil {
		return ListResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return ListResult{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	rows, err := s.invitations.List(ctx, listQuery{
		userID: params.ActorID,
		status: params.Status,
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	})
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}

	var nextCursor string
	if len(rows) > limit {
		last := rows[limit-1]
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}

	items := make([]InvitationDTO, 0, len(rows))
	for i := range rows {
		items = append(items, toInvitationDTO(&rows[i]))
	}
	return ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) publish(ctx context.Context, event Event) {
	payload, err := EncodeEvent(event)
	if err != nil {
		s.metrics.IncPublish(false)
		s.logg.Error(ctx, "failed to encode invitation event", err)
		return
	}
	if err := s.publisher.Publish(ctx, Topic, payload); err != nil {
		s.metrics.IncPublish(false)
		s.logg.Error(ctx, "failed to publish invitation event", err)
		return
	}
	s.metrics.IncPublish(true)
}

func mapLoadErr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func pendingConflict(existingID uuid.UUID, cause error) error {
	e := pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "a pending invitation already exists for this pair")
	if existingID != uuid.Nil {
		e = e.WithDetails(map[string]any{"invitation_id": existingID})
	}
	return e
}
