package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/peerlink-backend/internal/bus"
	"github.com/angelmondragon/peerlink-backend/internal/cron"
	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	"github.com/angelmondragon/peerlink-backend/internal/rooms"
	"github.com/angelmondragon/peerlink-backend/internal/scheduler"
	"github.com/angelmondragon/peerlink-backend/internal/users"
	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/db"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/metrics"
	"github.com/angelmondragon/peerlink-backend/pkg/migrate"
	"github.com/angelmondragon/peerlink-backend/pkg/redis"
)

const lockName = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	// Timeout events only reach API subscribers over the redis or nats bus.
	eventBus, err := bus.New(cfg.Realtime, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification bus", err)
		os.Exit(1)
	}
	if cfg.Realtime.BusDriver == config.BusDriverMemory {
		logg.Warn(context.Background(), "memory bus selected; sweep timeouts will not be streamed to clients")
	}

	// The sweep only expires invitations; it never schedules new jobs.
	timeouts := scheduler.NewMemoryScheduler(logg)

	invitationRepo := invitations.NewRepository(dbClient.DB())
	invitationService, err := invitations.NewService(invitations.ServiceParams{
		DB:           dbClient,
		Invitations:  invitationRepo,
		Users:        users.NewRepository(dbClient.DB()),
		Rooms:        rooms.NewRepository(dbClient.DB()),
		Scheduler:    timeouts,
		Publisher:    eventBus,
		Logger:       logg,
		Metrics:      metrics.NewInvitationMetrics(prometheus.DefaultRegisterer),
		TimeoutDelay: cfg.Invitation.Timeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation service", err)
		os.Exit(1)
	}

	sweep, err := cron.NewInvitationTimeoutSweepJob(cron.InvitationTimeoutSweepJobParams{
		Logger:       logg,
		Finder:       invitationRepo,
		Expirer:      invitationService,
		TimeoutDelay: cfg.Invitation.Timeout,
		Grace:        cfg.Invitation.SweepGrace,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation sweep job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweep),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	runErr := service.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if err := multierr.Combine(runErr, timeouts.Close(), eventBus.Close()); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockName, env)
}
