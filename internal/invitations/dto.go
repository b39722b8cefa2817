package invitations

import (
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	pkgpagination "github.com/angelmondragon/peerlink-backend/pkg/pagination"
	"github.com/google/uuid"
)

// SendInput carries a sendInvitation mutation. A nil ID creates a new
// invitation; otherwise Status is applied to the existing one.
type SendInput struct {
	ID         *uuid.UUID
	ReceiverID *uuid.UUID
	Status     enums.InvitationStatus
}

// Participant is the public projection of a sender or receiver.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// InvitationDTO is the public projection of an invitation.
type InvitationDTO struct {
	ID        uuid.UUID              `json:"id"`
	Sender    Participant            `json:"sender"`
	Receiver  Participant            `json:"receiver"`
	Status    enums.InvitationStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// RoomDTO is the public projection of a room.
type RoomDTO struct {
	ID           uuid.UUID `json:"id"`
	InvitationID uuid.UUID `json:"invitation_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Result is what every invitation operation returns. Room is set only for
// ACCEPTED invitations.
type Result struct {
	Invitation InvitationDTO `json:"invitation"`
	Room       *RoomDTO      `json:"room,omitempty"`
}

// HasRoom reports whether the result carries a room.
func (r Result) HasRoom() bool {
	return r.Room != nil
}

// ListParams scopes a listing to the acting user.
type ListParams struct {
	ActorID uuid.UUID
	Status  *enums.InvitationStatus
	pkgpagination.Params
}

// ListResult is a page of invitations.
type ListResult struct {
	Items  []InvitationDTO `json:"items"`
	Cursor string          `json:"cursor"`
}

func toParticipant(id uuid.UUID, u *models.User) Participant {
	p := Participant{ID: id}
	if u != nil {
		p.DisplayName = u.DisplayName
	}
	return p
}

func toInvitationDTO(m *models.Invitation) InvitationDTO {
	return InvitationDTO{
		ID:        m.ID,
		Sender:    toParticipant(m.SenderID, m.Sender),
		Receiver:  toParticipant(m.ReceiverID, m.Receiver),
		Status:    m.Status,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func toRoomDTO(m *models.Room) *RoomDTO {
	if m == nil {
		return nil
	}
	return &RoomDTO{
		ID:           m.ID,
		InvitationID: m.InvitationID,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func toResult(inv *models.Invitation, room *models.Room) Result {
	return Result{
		Invitation: toInvitationDTO(inv),
		Room:       toRoomDTO(room),
	}
}
