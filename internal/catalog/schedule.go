package catalog

import (
	"context"
	"time"
)

// DefaultPacing is the pause between consecutive generator calls of a
// reconciliation pass.
const DefaultPacing = time.Second

// Scheduler paces consecutive generator calls.
type Scheduler interface {
	// Delay blocks until the next call may be issued or ctx is done.
	Delay(ctx context.Context) error
}

// IntervalScheduler waits a fixed interval.
type IntervalScheduler struct {
	Interval time.Duration
}

// NewIntervalScheduler returns a scheduler waiting d, or DefaultPacing if d <= 0.
func NewIntervalScheduler(d time.Duration) *IntervalScheduler {
	if d <= 0 {
		d = DefaultPacing
	}
	return &IntervalScheduler{Interval: d}
}

func (s *IntervalScheduler) Delay(ctx context.Context) error {
	t := time.NewTimer(s.Interval)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoDelay never waits.
type NoDelay struct{}

func (NoDelay) Delay(ctx context.Context) error {
	return ctx.Err()
}
