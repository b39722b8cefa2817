package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/peerlink-backend/api/controllers"
	"github.com/angelmondragon/peerlink-backend/api/middleware"
	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	"github.com/angelmondragon/peerlink-backend/internal/users"
	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/db"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/redis"
)

const sendRateLimitPolicy = "invitation_send"

// NewRouter wires the HTTP surface. stream serves the invitation websocket and
// metrics exposes prometheus; either may be nil.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	usersService users.Service,
	invitationsService invitations.Service,
	stream http.Handler,
	metrics http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readyDeps := map[string]controllers.Pinger{}
	if dbP != nil {
		readyDeps["db"] = dbP
	}
	sendLimit := middleware.UserRateLimit(sendRateLimitPolicy, 0, 0, nil, logg)
	if redisClient != nil {
		readyDeps["redis"] = redisClient
		sendLimit = middleware.UserRateLimit(sendRateLimitPolicy, cfg.Invitation.SendLimit, cfg.Invitation.SendWindow, redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/me", controllers.Me(usersService, logg))
		r.Route("/invitations", func(r chi.Router) {
			r.With(sendLimit).Post("/", controllers.SendInvitation(invitationsService, logg))
			r.Get("/", controllers.ListInvitations(invitationsService, logg))
			if stream != nil {
				r.Method(http.MethodGet, "/stream", stream)
			}
			r.Get("/{invitationId}", controllers.GetInvitation(invitationsService, logg))
		})
	})

	return r
}
