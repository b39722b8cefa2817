package middleware

import (
	"net/http"

	"github.com/angelmondragon/peerlink-backend/api/responses"
	pkgAuth "github.com/angelmondragon/peerlink-backend/pkg/auth"
	"github.com/angelmondragon/peerlink-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the user id.
// The token may also arrive in the access_token query parameter for websocket
// clients.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := pkgAuth.RequestToken(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
