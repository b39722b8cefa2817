package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is the session context opened when an invitation is accepted.
type Room struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	InvitationID uuid.UUID `gorm:"column:invitation_id;type:uuid;not null;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
