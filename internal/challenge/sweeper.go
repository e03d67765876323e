package challenge

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper purges expired sessions on a fixed interval, independent of request
// traffic. It only ever calls DeleteExpired, which takes the store lock
// briefly per pass; in-flight verifications are never blocked for the
// duration of a sweep cycle.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a sweeper for the given store.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			deleted, err := s.store.DeleteExpired(ctx, now.UTC())
			if err != nil {
				s.logger.ErrorContext(ctx, "challenge sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.logger.DebugContext(ctx, "challenge sweep", "deleted", deleted)
			}
		}
	}
}
