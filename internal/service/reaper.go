package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Reaper periodically purges expired URL records. Purging is hygiene, not
// correctness: the redirect path re-checks expiry itself, so a late sweep
// never makes an expired link redirectable.
type Reaper struct {
	repo     URLRepository
	sink     LogSink
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewReaper creates a reaper that sweeps at the given interval.
func NewReaper(repo URLRepository, sink LogSink, logger *slog.Logger, interval time.Duration) *Reaper {
	return &Reaper{
		repo:     repo,
		sink:     sink,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context is canceled. A failed
// cycle is logged and the next cycle proceeds unaffected. It always returns
// nil so an errgroup supervising it only stops on context cancellation.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return nil
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	purged, err := r.repo.DeleteExpired(ctx, r.now())
	if err != nil {
		r.logger.Error("failed to purge expired urls", slog.Any("err", err))
		r.sink.Error("reaper", fmt.Sprintf("failed to purge expired urls: %v", err))
		return
	}

	if purged > 0 {
		r.logger.Info("purged expired urls", slog.Int64("count", purged))
		r.sink.Info("reaper", fmt.Sprintf("purged %d expired urls", purged))
	}
}
