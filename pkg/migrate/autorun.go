package migrate

import (
	"context"
	"fmt"

	"github.com/rilegato/rilegato-backend/pkg/config"
	"github.com/rilegato/rilegato-backend/pkg/db"
	"github.com/rilegato/rilegato-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot. It only fires in dev with
// the auto-migrate flag on; production schemas move through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "applying migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
