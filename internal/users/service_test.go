package users

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubUserLoader struct {
	user *models.User
	err  error
}

func (s stubUserLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func TestServiceGet(t *testing.T) {
	id := uuid.New()
	svc, err := NewService(stubUserLoader{user: &models.User{ID: id, DisplayName: "lin"}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	got, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != id || got.DisplayName != "lin" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestServiceGetErrors(t *testing.T) {
	cases := []struct {
		name   string
		loader stubUserLoader
		id     uuid.UUID
		code   pkgerrors.Code
	}{
		{name: "missing id", id: uuid.Nil, code: pkgerrors.CodeUnauthorized},
		{name: "not found", id: uuid.New(), code: pkgerrors.CodeNotFound},
		{name: "store failure", id: uuid.New(), loader: stubUserLoader{err: errors.New("boom")}, code: pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewService(tc.loader)
			if err != nil {
				t.Fatalf("new service: %v", err)
			}
			_, err = svc.Get(context.Background(), tc.id)
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}
