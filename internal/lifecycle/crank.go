// Package lifecycle drives the periodic state advancement: ending expired
// epochs, settling expired auctions, and retrying failed refunds.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
)

// leaderLockKey guards the tick across replicas.
const leaderLockKey = "crank:leader"

// Step is one unit of lifecycle work. Steps run in a fixed order each tick;
// a failing step does not stop the ones after it.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Crank ticks the lifecycle steps on a fixed interval. At most one tick runs
// at a time in-process, and when a lock manager is configured, at most one
// across all replicas.
type Crank struct {
	steps    []Step
	interval time.Duration
	locks    domain.LockManager
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ticking atomic.Bool
}

// New creates a Crank. locks may be nil to disable cross-replica leadership.
func New(steps []Step, interval time.Duration, locks domain.LockManager, m *metrics.Metrics, logger *slog.Logger) *Crank {
	return &Crank{
		steps:    steps,
		interval: interval,
		locks:    locks,
		metrics:  m,
		logger:   logger.With(slog.String("component", "crank")),
	}
}

// Run ticks until ctx is cancelled. The first tick fires immediately so a
// fresh deployment catches up without waiting a full interval.
func (c *Crank) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "crank: starting",
		slog.Duration("interval", c.interval),
		slog.Int("steps", len(c.steps)))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "crank: stopping")
			return ctx.Err()
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one pass of all steps. Overlapping calls and ticks on a
// non-leader replica are skipped, not queued.
func (c *Crank) Tick(ctx context.Context) {
	if !c.ticking.CompareAndSwap(false, true) {
		c.metrics.CrankTicksSkipped.Inc()
		return
	}
	defer c.ticking.Store(false)

	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, leaderLockKey, c.interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				c.metrics.CrankTicksSkipped.Inc()
				return
			}
			c.logger.WarnContext(ctx, "crank: leader lock unavailable, ticking anyway",
				slog.String("error", err.Error()))
		} else {
			defer unlock()
		}
	}

	c.metrics.CrankTicks.Inc()
	for _, step := range c.steps {
		c.runStep(ctx, step)
		if ctx.Err() != nil {
			return
		}
	}
}

// runStep executes one step with timing and panic containment. A panicking
// step is reported as an error so the remaining steps still run.
func (c *Crank) runStep(ctx context.Context, step Step) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("crank: step %s panicked: %v", step.Name, r)
			}
		}()
		return step.Run(ctx)
	}()
	c.metrics.CrankStepDuration.WithLabelValues(step.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.CrankStepErrors.WithLabelValues(step.Name).Inc()
		c.logger.ErrorContext(ctx, "crank: step failed",
			slog.String("step", step.Name),
			slog.String("error", err.Error()))
		return
	}
	c.logger.DebugContext(ctx, "crank: step done",
		slog.String("step", step.Name),
		slog.Duration("elapsed", time.Since(start)))
}
