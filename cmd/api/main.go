package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/peerlink-backend/api/middleware"
	"github.com/angelmondragon/peerlink-backend/api/routes"
	"github.com/angelmondragon/peerlink-backend/internal/bus"
	"github.com/angelmondragon/peerlink-backend/internal/gateway"
	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	"github.com/angelmondragon/peerlink-backend/internal/rooms"
	"github.com/angelmondragon/peerlink-backend/internal/scheduler"
	"github.com/angelmondragon/peerlink-backend/internal/users"
	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/db"
	"github.com/angelmondragon/peerlink-backend/pkg/instance"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/metrics"
	"github.com/angelmondragon/peerlink-backend/pkg/migrate"
	"github.com/angelmondragon/peerlink-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	eventBus, err := bus.New(cfg.Realtime, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification bus", err)
		os.Exit(1)
	}

	timeouts, runScheduler, err := newScheduler(cfg, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create timeout scheduler", err)
		os.Exit(1)
	}

	registry := prometheus.DefaultRegisterer
	userRepo := users.NewRepository(dbClient.DB())
	invitationService, err := invitations.NewService(invitations.ServiceParams{
		DB:           dbClient,
		Invitations:  invitations.NewRepository(dbClient.DB()),
		Users:        userRepo,
		Rooms:        rooms.NewRepository(dbClient.DB()),
		Scheduler:    timeouts,
		Publisher:    eventBus,
		Logger:       logg,
		Metrics:      metrics.NewInvitationMetrics(registry),
		TimeoutDelay: cfg.Invitation.Timeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation service", err)
		os.Exit(1)
	}
	timeouts.SetHandler(invitationService.HandleTimeout)

	userService, err := users.NewService(userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	gw, err := gateway.New(gateway.Params{
		Bus:     eventBus,
		Logger:  logg,
		Metrics: metrics.NewGatewayMetrics(registry),
		Buffer:  cfg.Realtime.SendBuffer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription gateway", err)
		os.Exit(1)
	}
	stream := gateway.Handler(gw, gateway.StreamConfigFrom(cfg.Realtime), middleware.IdentifyRequest)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  instance.GetID(),
		"bus":       cfg.Realtime.BusDriver,
		"scheduler": cfg.Scheduler.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, userService, invitationService, stream, promhttp.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return runScheduler(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := group.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	closeErr := multierr.Combine(closeScheduler(timeouts), eventBus.Close())
	if err := multierr.Append(runErr, closeErr); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

// newScheduler returns the configured timeout scheduler and the loop that
// drives it. The memory driver fires from its own timers, so its loop only
// waits for shutdown.
func newScheduler(cfg *config.Config, redisClient *redis.Client, logg *logger.Logger) (scheduler.Scheduler, func(context.Context) error, error) {
	switch cfg.Scheduler.Driver {
	case config.SchedulerDriverRedis:
		s, err := scheduler.NewRedisScheduler(scheduler.RedisSchedulerParams{
			Store:        redisClient,
			Logger:       logg,
			PollInterval: cfg.Scheduler.PollInterval,
			Concurrency:  cfg.Scheduler.Concurrency,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Run, nil
	default:
		s := scheduler.NewMemoryScheduler(logg)
		return s, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}, nil
	}
}

func closeScheduler(s scheduler.Scheduler) error {
	if closer, ok := s.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
