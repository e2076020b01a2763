package app

import (
	"context"
	"time"

	"bakehouse/internal/config"
	"bakehouse/internal/infrastructure/storage/postgres"
	"bakehouse/pkg/logger"
)

// Cleanup removes expired idempotency keys once.
func Cleanup(ctx context.Context, st *Storage) (int64, error) {
	removed, err := st.Idempotency.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info(ctx, "cleaned up idempotency keys", "count", removed)
	}
	return removed, nil
}

// RunMaintenance runs the periodic jobs until ctx is cancelled: idempotency
// cleanup, and pool statistics when the storage is a database.
func RunMaintenance(ctx context.Context, cfg config.JobsConfig, st *Storage) {
	cleanup := time.NewTicker(cfg.CleanupInterval)
	defer cleanup.Stop()

	// A nil channel never fires: no stats without a pool.
	var stats <-chan time.Time
	if st.Pool != nil && cfg.PoolStatsInterval > 0 {
		t := time.NewTicker(cfg.PoolStatsInterval)
		defer t.Stop()
		stats = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if _, err := Cleanup(ctx, st); err != nil {
				logger.Warn(ctx, "idempotency cleanup failed", "error", err)
			}
		case <-stats:
			postgres.LogPoolStats(ctx, st.Pool)
		}
	}
}
