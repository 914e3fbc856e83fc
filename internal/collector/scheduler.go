package collector

import (
	"context"
	"log"
	"time"
)

// Scheduler runs collection cycles on a fixed interval, with an
// optional short-delay run at startup so a fresh deploy has data
// before the first full interval elapses.
type Scheduler struct {
	collector    *Collector
	interval     time.Duration
	runOnStartup bool
	startupDelay time.Duration
}

func NewScheduler(c *Collector, interval time.Duration, runOnStartup bool) *Scheduler {
	return &Scheduler{
		collector:    c,
		interval:     interval,
		runOnStartup: runOnStartup,
		startupDelay: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled. Ticks align to interval
// boundaries, so the hourly default fires at minute 0. Overlapping
// cycles are prevented by the collector itself; a tick that lands
// mid-cycle is skipped.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[scheduler] Collecting every %s (startup run: %t)", s.interval, s.runOnStartup)

	if s.runOnStartup {
		select {
		case <-time.After(s.startupDelay):
			s.runCycle(ctx)
		case <-ctx.Done():
			return
		}
	}

	select {
	case <-time.After(time.Until(nextTick(time.Now(), s.interval))):
		s.runCycle(ctx)
	case <-ctx.Done():
		log.Printf("[scheduler] Stopping")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			log.Printf("[scheduler] Stopping")
			return
		}
	}
}

// nextTick returns the first interval boundary after now.
func nextTick(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, err := s.collector.CollectAll(ctx); err != nil {
		log.Printf("[scheduler] Cycle failed: %v", err)
	}
}
