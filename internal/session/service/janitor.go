package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
)

// Cleaner reclaims stale sessions. *Store implements it.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Janitor runs Cleanup on a fixed interval, independent of request traffic.
type Janitor struct {
	cleaner  Cleaner
	interval time.Duration
	logger   logr.Logger
	onRun    func(deleted int64, err error)
}

// NewJanitor returns a Janitor calling c.Cleanup every interval. interval <= 0 selects one hour.
func NewJanitor(c Cleaner, interval time.Duration, logger logr.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{cleaner: c, interval: interval, logger: logger.WithName("session-janitor")}
}

// OnRun registers a callback invoked after every cleanup run, for metrics.
func (j *Janitor) OnRun(f func(deleted int64, err error)) *Janitor {
	j.onRun = f
	return j
}

// RunOnce performs one cleanup bounded by half the interval.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	runCtx, cancel := context.WithTimeout(ctx, j.interval/2)
	defer cancel()
	n, err := j.cleaner.Cleanup(runCtx)
	switch {
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded):
		j.logger.Error(err, "failed to clean up sessions")
	case err != nil:
		j.logger.Info("session cleanup interrupted", "err", err.Error(), "deleted", n)
	case n > 0:
		j.logger.Info("cleaned up stale sessions", "deleted", n)
	default:
		j.logger.V(1).Info("no stale sessions")
	}
	if j.onRun != nil {
		j.onRun(n, err)
	}
	return n, err
}

// Run blocks, cleaning up on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info("starting session cleanup worker", "interval", j.interval.String())
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		case <-ctx.Done():
			j.logger.Info("stopping session cleanup worker")
			return
		}
	}
}
