package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/peerlink-backend/internal/users"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
)

type testUsersService struct {
	getFn func(ctx context.Context, id uuid.UUID) (users.UserDTO, error)
}

func (s testUsersService) Get(ctx context.Context, id uuid.UUID) (users.UserDTO, error) {
	return s.getFn(ctx, id)
}

func TestMe(t *testing.T) {
	actor := uuid.New()
	svc := testUsersService{getFn: func(_ context.Context, id uuid.UUID) (users.UserDTO, error) {
		return users.UserDTO{ID: id, DisplayName: "Ada"}, nil
	}}

	resp := httptest.NewRecorder()
	Me(svc, testLogger()).ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/me", "", actor))
	require.Equal(t, http.StatusOK, resp.Code)
	data := decodeData(t, resp)
	assert.Equal(t, actor.String(), data["id"])
}

func TestMeUnknownUser(t *testing.T) {
	svc := testUsersService{getFn: func(context.Context, uuid.UUID) (users.UserDTO, error) {
		return users.UserDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}}
	resp := httptest.NewRecorder()
	Me(svc, testLogger()).ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/me", "", uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
