package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/db"
	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
)

// sqlitePendingPairIndex mirrors uniq_invitations_pending_pair for the sqlite schema.
const sqlitePendingPairIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uniq_invitations_pending_pair ON invitations (pair_key) WHERE status = 'PENDING'`

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. The sqlite driver has no goose history and is built from
// the models instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "driver": cfg.DB.Driver})

	if cfg.DB.Driver == db.DriverSQLite {
		logg.Info(ctx, "running sqlite schema sync (dev auto-run)")
		conn := client.DB().WithContext(ctx)
		if err := conn.AutoMigrate(&models.User{}, &models.Invitation{}, &models.Room{}); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		if err := conn.Exec(sqlitePendingPairIndex).Error; err != nil {
			return fmt.Errorf("sqlite pending pair index: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
