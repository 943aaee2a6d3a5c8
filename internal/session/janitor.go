package session

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor calls Cleanup every interval until ctx is done.
func RunJanitor(ctx context.Context, store *ServerStore, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Cleanup(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("session cleanup", "deleted", n)
			}
		}
	}
}
