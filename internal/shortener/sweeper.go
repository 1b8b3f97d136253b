package shortener

import (
	"context"
	"log/slog"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
)

// Sweeper periodically deletes links whose expiry has passed.
type Sweeper struct {
	repo     Repository
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type SweeperConfig struct {
	Interval time.Duration // zero or negative disables Run
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewSweeper(repo Repository, cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		repo:     repo,
		interval: cfg.Interval,
		metrics:  cfg.Metrics,
		logger:   logger.With("component", "sweeper"),
		now:      now,
	}
}

// Run sweeps every interval until ctx is done. Sweep failures are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "expiry sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed",
					"error", err.Error(),
					"error_kind", errx.KindOf(err),
				)
			}
		}
	}
}

// Sweep deletes every link that expired before now.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	const op = "shortener.Sweeper.Sweep"

	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, errx.E(op, errx.KindOf(err), err)
	}

	s.metrics.LinksSwept(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "expired links swept", "count", n)
	}
	return n, nil
}
