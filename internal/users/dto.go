package users

import (
	"time"

	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/google/uuid"
)

// UserDTO is the public projection of a user.
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromModel maps the persisted user to its DTO.
func FromModel(u *models.User) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
