package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type tokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// TokenReaper periodically deletes expired tokens. Lookups already ignore expired rows, so the
// reaper only bounds table growth.
type TokenReaper struct {
	purger  tokenPurger
	logger  *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewTokenReaper schedules purges on a standard five field cron expression.
func NewTokenReaper(purger tokenPurger, schedule string, timeout time.Duration, logger *zap.Logger) (*TokenReaper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &TokenReaper{purger: purger, logger: logger, cron: cron.New(), timeout: timeout}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule token reaper %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the scheduler in its own goroutine.
func (r *TokenReaper) Start() {
	r.cron.Start()
	r.logger.Info("token reaper started")
}

// Stop halts the scheduler and waits for a running purge to finish or ctx to expire.
func (r *TokenReaper) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("token reaper stop timed out")
	}
}

// RunOnce performs a single purge.
func (r *TokenReaper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	purged, err := r.purger.PurgeExpired(ctx)
	if err != nil {
		r.logger.Warn("token purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		r.logger.Info("expired tokens purged", zap.Int64("count", purged))
	}
}
