package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/peerlink-backend/pkg/enums"
)

// Invitation proposes a session between two users.
type Invitation struct {
	ID         uuid.UUID              `gorm:"type:uuid;primaryKey"`
	SenderID   uuid.UUID              `gorm:"column:sender_id;type:uuid;not null"`
	ReceiverID uuid.UUID              `gorm:"column:receiver_id;type:uuid;not null"`
	PairKey    string                 `gorm:"column:pair_key;type:text;not null"`
	Status     enums.InvitationStatus `gorm:"column:status;type:invitation_status;not null"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Sender   *User `gorm:"foreignKey:SenderID"`
	Receiver *User `gorm:"foreignKey:ReceiverID"`
}

func (i *Invitation) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.PairKey == "" {
		i.PairKey = PairKey(i.SenderID, i.ReceiverID)
	}
	return nil
}

// HasParticipant reports whether userID is the sender or the receiver.
func (i *Invitation) HasParticipant(userID uuid.UUID) bool {
	return i != nil && (i.SenderID == userID || i.ReceiverID == userID)
}

// PairKey identifies the unordered pair {a, b}.
func PairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}
