package controllers

import (
	"net/http"

	"github.com/angelmondragon/peerlink-backend/api/middleware"
	"github.com/angelmondragon/peerlink-backend/api/responses"
	"github.com/angelmondragon/peerlink-backend/internal/users"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
)

// Me returns the authenticated user.
func Me(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing"))
			return
		}
		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
