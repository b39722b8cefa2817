package invitations

import (
	"testing"
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTripKeepsRoom(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	result := Result{
		Invitation: InvitationDTO{
			ID:       uuid.New(),
			Sender:   Participant{ID: sender, DisplayName: "a"},
			Receiver: Participant{ID: receiver, DisplayName: "b"},
			Status:   enums.InvitationStatusAccepted,
		},
		Room: &RoomDTO{ID: uuid.New()},
	}

	payload, err := EncodeEvent(NewEvent(enums.InvitationEventUpdated, result, at))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"kind":"invitation.updated"`)

	decoded, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, result.Invitation.ID, decoded.Invitation.ID)
	require.NotNil(t, decoded.Room)
	assert.Equal(t, result.Room.ID, decoded.Room.ID)
	assert.True(t, decoded.OccurredAt.Equal(at))
}

func TestEventInvolves(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	e := Event{Invitation: InvitationDTO{
		Sender:   Participant{ID: sender},
		Receiver: Participant{ID: receiver},
	}}

	assert.True(t, e.Involves(sender))
	assert.True(t, e.Involves(receiver))
	assert.False(t, e.Involves(uuid.New()))
	assert.False(t, e.Involves(uuid.Nil))
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"kind":"invitation.created","invitation":{}}`))
	assert.Error(t, err)
}
