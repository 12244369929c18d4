package stopwatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is short enough that alerts land within a quarter second.
const DefaultPollInterval = 250 * time.Millisecond

// Sink receives alerts from a Runner.
type Sink func(Alert)

// Runner polls a stopwatch on a ticker and forwards due alerts.
type Runner struct {
	sw       *Stopwatch
	clock    clockwork.Clock
	interval time.Duration
	sink     Sink
	logger   *slog.Logger
}

// NewRunner creates a runner polling sw every interval.
func NewRunner(sw *Stopwatch, clock clockwork.Clock, interval time.Duration, sink Sink, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Runner{sw: sw, clock: clock, interval: interval, sink: sink, logger: logger}
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stopwatch runner stopped")
			return
		case <-ticker.Chan():
			for _, a := range r.sw.Poll() {
				r.sink(a)
			}
		}
	}
}
