package invitations

import (
	"context"
	"time"

	"github.com/angelmondragon/peerlink-backend/internal/repo"
	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	"github.com/angelmondragon/peerlink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists invitations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, inv *models.Invitation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	FindPendingByPair(ctx context.Context, a, b uuid.UUID) (*models.Invitation, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, status enums.InvitationStatus, at time.Time) (bool, error)
	List(ctx context.Context, opts listQuery) ([]models.Invitation, error)
	FindPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Invitation, error)
}

type repository struct {
	repo.Base
}

// NewRepository constructs an invitations repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.Tx(tx)}
}

// Create inserts a new invitation row. Sender and Receiver are never upserted.
func (r *repository) Create(ctx context.Context, inv *models.Invitation) error {
	return r.DB(ctx).Omit(clause.Associations).Create(inv).Error
}

// FindByID loads an invitation with both participants.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.DB(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindPendingByPair returns the PENDING invitation between the two users, in
// either direction.
func (r *repository) FindPendingByPair(ctx context.Context, a, b uuid.UUID) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.DB(ctx).
		Where("pair_key = ? AND status = ?", models.PairKey(a, b), enums.InvitationStatusPending).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// TransitionFromPending moves the invitation to status only while it is still
// PENDING. It reports whether this call performed the change.
func (r *repository) TransitionFromPending(ctx context.Context, id uuid.UUID, status enums.InvitationStatus, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type listQuery struct {
	userID uuid.UUID
	status *enums.InvitationStatus
	limit  int
	cursor *pagination.Cursor
}

// List returns invitations the user sends or receives, newest first.
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Invitation, error) {
	query := r.DB(ctx).
		Model(&models.Invitation{}).
		Preload("Sender").
		Preload("Receiver").
		Where("(sender_id = ? OR receiver_id = ?)", opts.userID, opts.userID)

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Invitation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindPendingCreatedBefore returns PENDING invitations created before cutoff,
// oldest first.
func (r *repository) FindPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Invitation, error) {
	var rows []models.Invitation
	err := r.DB(ctx).
		Where("status = ? AND created_at < ?", enums.InvitationStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
