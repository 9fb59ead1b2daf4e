package readmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/metrics"
)

// Synchronizer upserts one cache from one event type P.
type Synchronizer[P CachePayload] struct {
	cache      string
	store      Store
	now        func() time.Time
	logger     logger.Logger
	appliedCtr metrics.Counter
	skippedCtr metrics.Counter
	failedCtr  metrics.Counter
}

var _ Handler = (*Synchronizer[event.PersonCreated])(nil)

// Option configures a Synchronizer.
type Option func(o *options)

type options struct {
	now        func() time.Time
	logger     logger.Logger
	appliedCtr metrics.Counter
	skippedCtr metrics.Counter
	failedCtr  metrics.Counter
}

// WithLogger allows clients to configure an optional logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for LastSyncedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCounters allows clients to configure optional counters for
// observability. Nil counters are ignored.
func WithCounters(applied, skipped, failed metrics.Counter) Option {
	return func(o *options) {
		o.appliedCtr = metrics.OrNop(applied)
		o.skippedCtr = metrics.OrNop(skipped)
		o.failedCtr = metrics.OrNop(failed)
	}
}

// NewSynchronizer builds the synchronizer feeding cache from events of type P.
func NewSynchronizer[P CachePayload](cache string, store Store, opts ...Option) *Synchronizer[P] {
	if cache == "" {
		panic("cache name is mandatory")
	}
	if store == nil {
		panic("store is mandatory")
	}
	o := options{
		now:        time.Now,
		logger:     &logger.NopLogger{},
		appliedCtr: &metrics.NopCounter{},
		skippedCtr: &metrics.NopCounter{},
		failedCtr:  &metrics.NopCounter{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Synchronizer[P]{
		cache:      cache,
		store:      store,
		now:        o.now,
		logger:     o.logger,
		appliedCtr: o.appliedCtr,
		skippedCtr: o.skippedCtr,
		failedCtr:  o.failedCtr,
	}
}

// EventType is the event type this synchronizer consumes.
func (s *Synchronizer[P]) EventType() string {
	var p P
	return p.EventType()
}

// Cache is the cache this synchronizer owns.
func (s *Synchronizer[P]) Cache() string {
	return s.cache
}

// Apply upserts the cache entry keyed by the event's business identifier.
// Only the fields carried by the event are written, so applying the same event
// twice leaves the same field values behind.
func (s *Synchronizer[P]) Apply(ctx context.Context, e *event.Envelope) Result {
	if e == nil {
		return s.skip(fmt.Errorf("%w: nil envelope", ErrMalformedEvent))
	}
	p, ok := e.Payload.(P)
	if !ok {
		return s.skip(fmt.Errorf("%w: %s expected %s, got %s", ErrMalformedEvent, s.cache, s.EventType(), e.EventType))
	}

	key := p.BusinessKey()
	existing, err := s.store.Find(ctx, s.cache, key)
	if err != nil {
		return s.fail(e, fmt.Errorf("%w: finding %s/%s: %v", ErrTransientProcessing, s.cache, key, err))
	}

	created := existing == nil
	// only the event's own fields are written, the store merges them
	entry := &Entry{
		Cache:        s.cache,
		Key:          key,
		Fields:       p.Fields(),
		LastSyncedAt: s.now().UTC(),
		Source:       e.EventType,
	}

	if err := s.store.Save(ctx, entry, created); err != nil {
		return s.fail(e, fmt.Errorf("%w: saving %s/%s: %v", ErrTransientProcessing, s.cache, key, err))
	}

	s.appliedCtr.Inc(1)
	s.logger.Debug(fmt.Sprintf("%s %s/%s from %s (created=%t)", Applied, s.cache, key, e, created))
	return Result{Outcome: Applied}
}

func (s *Synchronizer[P]) skip(err error) Result {
	s.skippedCtr.Inc(1)
	s.logger.Warn(fmt.Sprintf("dropping event: %v", err))
	return Result{Outcome: Skipped, Err: err}
}

func (s *Synchronizer[P]) fail(e *event.Envelope, err error) Result {
	s.failedCtr.Inc(1)
	s.logger.Error(fmt.Sprintf("applying %s, it will be redelivered", e), err)
	return Result{Outcome: Failed, Err: err}
}
