// Package jobs runs the background loops: the scheduled shipping
// progression and the abandoned-checkout sweep.
package jobs

import (
	"context"
	"log"
	"time"
)

// Lifecycle is the slice of the order service the schedulers drive.
type Lifecycle interface {
	AdvanceOrders(ctx context.Context) (int, error)
	SweepAbandoned(ctx context.Context, grace time.Duration) (int, error)
}

type Runner struct {
	svc             Lifecycle
	advanceInterval time.Duration
	sweepInterval   time.Duration
	sweepGrace      time.Duration
}

func NewRunner(svc Lifecycle) *Runner {
	return &Runner{
		svc:             svc,
		advanceInterval: 6 * time.Hour,
		sweepInterval:   time.Minute,
		sweepGrace:      10 * time.Minute,
	}
}

// NewRunnerWithIntervals exists for tests and deployments that want the
// loops faster or slower than the defaults.
func NewRunnerWithIntervals(svc Lifecycle, advance, sweep, grace time.Duration) *Runner {
	return &Runner{svc: svc, advanceInterval: advance, sweepInterval: sweep, sweepGrace: grace}
}

// Start launches both loops; they stop when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.advanceLoop(ctx)
	go r.sweepLoop(ctx)
}

func (r *Runner) advanceLoop(ctx context.Context) {
	ticker := time.NewTicker(r.advanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			moved, err := r.svc.AdvanceOrders(runCtx)
			cancel()
			if err != nil {
				log.Printf("jobs: advance error: %v", err)
			} else if moved > 0 {
				log.Printf("jobs: advanced %d orders", moved)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			purged, err := r.svc.SweepAbandoned(runCtx, r.sweepGrace)
			cancel()
			if err != nil {
				log.Printf("jobs: sweep error: %v", err)
			} else if purged > 0 {
				log.Printf("jobs: purged %d abandoned checkouts", purged)
			}
		case <-ctx.Done():
			return
		}
	}
}
