// Package aggregate fans requests out to independent backends and merges
// whatever came back into one composite view.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/metrics"
	"github.com/FabioFlo/asd-platform-sub001/remote"
	"github.com/FabioFlo/asd-platform-sub001/satellite"
	"golang.org/x/sync/errgroup"
)

const defaultSectionTimeout = 2 * time.Second

var errEmptySection = errors.New("empty section")

// Fetcher loads one section. It must honour ctx; when it does not, its
// result is discarded once the section deadline passes.
type Fetcher func(ctx context.Context) (any, error)

// Section names one piece of a composite view and how to load it.
type Section struct {
	Name    string        // key of the section in the view
	Backend string        // backend the section comes from, for diagnostics
	Timeout time.Duration // bound for this fetch, 0 uses the aggregator default
	Fetch   Fetcher
}

// View is the merged result. Absent sections are listed in Missing and
// PartialData is true iff Missing is not empty.
type View struct {
	Sections    map[string]any
	Missing     []string
	PartialData bool
}

// Get returns the named section when present.
func (v *View) Get(name string) (any, bool) {
	s, ok := v.Sections[name]
	return s, ok
}

// Aggregator runs section fetches concurrently, each under its own deadline.
type Aggregator struct {
	timeout    time.Duration
	logger     logger.Logger
	failureCtr metrics.Counter
}

// opt allows optional configuration.
type opt func(a *Aggregator)

// WithLogger allows clients to configure an optional logger.
func WithLogger(l logger.Logger) opt {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithOnFailureCounter counts failed section fetches.
func WithOnFailureCounter(c metrics.Counter) opt {
	return func(a *Aggregator) {
		a.failureCtr = metrics.OrNop(c)
	}
}

// WithDefaultTimeout sets the bound used by sections without their own.
func WithDefaultTimeout(d time.Duration) opt {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(options ...opt) *Aggregator {
	a := &Aggregator{
		timeout:    defaultSectionTimeout,
		logger:     &logger.NopLogger{},
		failureCtr: &metrics.NopCounter{},
	}
	for _, o := range options {
		o(a)
	}
	return a
}

type slot struct {
	value any
	err   error
}

// Aggregate fetches every section concurrently and never fails: a section
// whose fetch errors, times out or is cancelled is simply absent. The call
// returns once every fetch has settled or hit its deadline.
func (a *Aggregator) Aggregate(ctx context.Context, sections []Section) *View {
	sections = a.unique(sections)
	results := make([]slot, len(sections))

	var g errgroup.Group
	if len(sections) > 0 {
		g.SetLimit(len(sections))
	}
	for i, s := range sections {
		i, s := i, s
		g.Go(func() error {
			results[i] = a.fetch(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	v := &View{Sections: make(map[string]any, len(sections))}
	for i, s := range sections {
		r := results[i]
		if r.err == nil && r.value == nil {
			r.err = errEmptySection
		}
		if r.err != nil {
			a.failureCtr.Inc(1)
			a.logger.Warn(fmt.Sprintf("section '%s' from backend '%s' unavailable (%s): %v", s.Name, s.Backend, ErrorKind(r.err), r.err))
			v.Missing = append(v.Missing, s.Name)
			continue
		}
		v.Sections[s.Name] = r.value
	}
	v.PartialData = len(v.Missing) > 0
	return v
}

func (a *Aggregator) fetch(ctx context.Context, s Section) slot {
	if s.Fetch == nil {
		return slot{err: errors.New("no fetcher")}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = a.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan slot, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- slot{err: fmt.Errorf("fetcher panicked: %v", p)}
			}
		}()
		v, err := s.Fetch(ctx)
		done <- slot{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return slot{err: ctx.Err()}
	}
}

func (a *Aggregator) unique(sections []Section) []Section {
	seen := make(map[string]bool, len(sections))
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if seen[s.Name] {
			a.logger.Warn(fmt.Sprintf("duplicated section '%s' ignored", s.Name))
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}

// ErrorKind classifies a section failure for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, satellite.ErrUnknownSatellite):
		return "unknown_satellite"
	case errors.Is(err, satellite.ErrSatelliteUnavailable):
		return "satellite_unavailable"
	case remote.IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, errEmptySection):
		return "empty"
	default:
		return "backend_error"
	}
}

// Typed adapts a fetcher returning a pointer so that a nil pointer counts as
// an absent section.
func Typed[T any](fn func(ctx context.Context) (*T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil || v == nil {
			return nil, err
		}
		return v, nil
	}
}
