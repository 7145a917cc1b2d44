package rabbitmq

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunCleanupScheduler publishes a cleanup job on a fixed period until the
// context is cancelled. Publishing failures are logged and the next tick
// tries again.
func RunCleanupScheduler(ctx context.Context, publisher *Publisher, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zerolog.Ctx(ctx).Info().Dur("interval", interval).Msg("cleanup scheduler started")

	for {
		select {
		case <-ticker.C:
			if err := publisher.PublishCleanup(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("failed to publish cleanup job")
			}
		case <-ctx.Done():
			zerolog.Ctx(ctx).Info().Msg("cleanup scheduler stopped")
			return
		}
	}
}
