package sweep

import (
	"context"
	"fmt"
	"time"
)

// Runner repeats a sweep at a fixed interval until its context ends.
type Runner struct {
	sweeper *Sweeper
	clock   func() time.Time
}

// NewRunner builds a runner for s. A nil clock uses time.Now.
func NewRunner(s *Sweeper, clock func() time.Time) *Runner {
	if s == nil {
		panic("sweeper is mandatory")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Runner{sweeper: s, clock: clock}
}

// Run sweeps immediately and then once per interval. It returns when ctx is
// done.
func (r *Runner) Run(ctx context.Context) {
	l := r.sweeper.logger
	l.Info(fmt.Sprintf("starting '%s' sweep every %s", r.sweeper.kind, r.sweeper.settings.Interval))

	ticker := time.NewTicker(r.sweeper.settings.Interval)
	defer ticker.Stop()
	for {
		summary, err := r.sweeper.Run(ctx, r.clock())
		if err != nil {
			l.Error(summary.String(), err)
		} else {
			l.Info(summary.String())
		}

		select {
		case <-ctx.Done():
			l.Info(fmt.Sprintf("'%s' sweep stopped", r.sweeper.kind))
			return
		case <-ticker.C:
		}
	}
}
