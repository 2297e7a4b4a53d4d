package trackingservice

import (
	"context"

	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/logger"
)

// Migrate applies the storage schema of the configured engine and exits.
func Migrate(ctx context.Context, cfgPath string) error {
	log := logger.New(serviceName)
	ctx = log.WithRequestID(ctx, "migrate-001")

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": cfgPath})
		return err
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "migration_failed", "Failed to apply storage schema", err, map[string]any{"driver": cfg.Storage.Driver})
		return err
	}
	store.Close()

	log.Info(ctx, "migration_applied", "Storage schema is up to date", map[string]any{"driver": cfg.Storage.Driver})
	return nil
}
