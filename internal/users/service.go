package users

import (
	"context"
	"errors"

	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service resolves the authenticated identity.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (UserDTO, error)
}

type service struct {
	repo userLoader
}

// NewService builds the users service.
func NewService(repo userLoader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (UserDTO, error) {
	if id == uuid.Nil {
		return UserDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}
