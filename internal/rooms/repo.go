package rooms

import (
	"context"
	"time"

	"github.com/angelmondragon/peerlink-backend/internal/repo"
	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists rooms opened by accepted invitations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitationID uuid.UUID, at time.Time) (*models.Room, error)
	FindByInvitation(ctx context.Context, invitationID uuid.UUID) (*models.Room, error)
}

type repository struct {
	repo.Base
}

// NewRepository constructs a rooms repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.Tx(tx)}
}

// Create opens the room for invitationID. The unique index on invitation_id
// rejects a second room for the same invitation.
func (r *repository) Create(ctx context.Context, invitationID uuid.UUID, at time.Time) (*models.Room, error) {
	room := &models.Room{InvitationID: invitationID, CreatedAt: at}
	if err := r.DB(ctx).Create(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}

func (r *repository) FindByInvitation(ctx context.Context, invitationID uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := r.DB(ctx).Where("invitation_id = ?", invitationID).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}
