package invitations

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	"github.com/google/uuid"
)

// Topic carries every invitation lifecycle event.
const Topic = "invitationSent"

// Event is the bus payload delivered to both participants.
type Event struct {
	Kind       enums.InvitationEventKind `json:"kind"`
	Invitation InvitationDTO             `json:"invitation"`
	Room       *RoomDTO                  `json:"room,omitempty"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// NewEvent builds the event for result.
func NewEvent(kind enums.InvitationEventKind, result Result, at time.Time) Event {
	return Event{
		Kind:       kind,
		Invitation: result.Invitation,
		Room:       result.Room,
		OccurredAt: at.UTC(),
	}
}

// Involves reports whether userID is the sender or receiver of the event.
func (e Event) Involves(userID uuid.UUID) bool {
	return userID != uuid.Nil &&
		(e.Invitation.Sender.ID == userID || e.Invitation.Receiver.ID == userID)
}

// EncodeEvent serializes e for the bus.
func EncodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode invitation event: %w", err)
	}
	return payload, nil
}

// DecodeEvent parses a bus payload.
func DecodeEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode invitation event: %w", err)
	}
	if e.Invitation.ID == uuid.Nil {
		return Event{}, fmt.Errorf("decode invitation event: missing invitation id")
	}
	return e, nil
}
