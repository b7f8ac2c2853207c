package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingLifecycle struct {
	advances int64
	sweeps   int64
}

func (c *countingLifecycle) AdvanceOrders(context.Context) (int, error) {
	atomic.AddInt64(&c.advances, 1)
	return 0, nil
}

func (c *countingLifecycle) SweepAbandoned(context.Context, time.Duration) (int, error) {
	atomic.AddInt64(&c.sweeps, 1)
	return 0, nil
}

func TestRunnerTicksAndStops(t *testing.T) {
	lc := &countingLifecycle{}
	r := NewRunnerWithIntervals(lc, 10*time.Millisecond, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	// Let any in-flight tick land before snapshotting.
	time.Sleep(30 * time.Millisecond)

	advances := atomic.LoadInt64(&lc.advances)
	sweeps := atomic.LoadInt64(&lc.sweeps)
	if advances == 0 {
		t.Fatal("advance loop never ticked")
	}
	if sweeps == 0 {
		t.Fatal("sweep loop never ticked")
	}

	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&lc.advances); got != advances {
		t.Fatalf("advance loop still ticking after cancel: %d -> %d", advances, got)
	}
	if got := atomic.LoadInt64(&lc.sweeps); got != sweeps {
		t.Fatalf("sweep loop still ticking after cancel: %d -> %d", sweeps, got)
	}
}
