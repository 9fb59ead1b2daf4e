package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/metrics"
	"github.com/google/uuid"
)

// Relay delivers the outbox records to the emitter. Several relays may run
// against the same table: the outbox lock lets only one of them work at a
// time.
type Relay struct {
	id         uuid.UUID
	settings   Settings
	logger     logger.Logger
	emitter    Emitter
	repository Repository
	successCtr metrics.Counter
	errorCtr   metrics.Counter
}

// opt allows optional configuration.
type opt func(r *Relay)

// WithLogger allows clients to configure an optional logger.
func WithLogger(l logger.Logger) opt {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOnSuccessCounter allows clients to configure an optional counter
// for observability.
func WithOnSuccessCounter(co metrics.Counter) opt {
	return func(r *Relay) {
		r.successCtr = metrics.OrNop(co)
	}
}

// WithOnErrorCounter allows clients to configure an optional counter
// for observability.
func WithOnErrorCounter(co metrics.Counter) opt {
	return func(r *Relay) {
		r.errorCtr = metrics.OrNop(co)
	}
}

func NewRelay(s Settings, r Repository, e Emitter, options ...opt) *Relay {
	if e == nil || r == nil {
		panic("you must provide an emitter and a repository")
	}
	validateSettings(&s)

	rl := &Relay{
		id:         uuid.New(),
		settings:   s,
		logger:     &logger.NopLogger{},
		emitter:    e,
		repository: r,
		successCtr: &metrics.NopCounter{},
		errorCtr:   &metrics.NopCounter{},
	}
	for _, o := range options {
		o(rl)
	}
	for _, a := range []any{e, r} {
		if l, ok := a.(logger.Loggable); ok {
			l.SetLogger(rl.logger)
		}
	}
	return rl
}

func (r *Relay) ID() uuid.UUID {
	return r.id
}

// Run polls the outbox every Settings.PollingInterval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info(fmt.Sprintf("outbox relay '%s' polling every %s", r.id, r.settings.PollingInterval))
	ticker := time.NewTicker(r.settings.PollingInterval)
	defer ticker.Stop()
	for {
		r.Tick(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info(fmt.Sprintf("outbox relay '%s' stopped", r.id))
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one polling iteration and returns the number of delivered
// records.
func (r *Relay) Tick(ctx context.Context) int {
	acquired, err := r.repository.AcquireLock(ctx, r.id)
	if err != nil {
		r.logger.Error("unable to get the lock", err)
		return 0
	}
	if !acquired {
		return 0
	}
	delivered := r.processOutbox(ctx)
	if err := r.repository.ReleaseLock(ctx, r.id); err != nil {
		r.logger.Error("releasing the outbox lock", err)
	}
	return delivered
}

// processOutbox scans the outbox within the limits defined by the settings and
// delivers the records in batches. Delivered records are deleted; the others
// stay for the next iteration.
func (r *Relay) processOutbox(ctx context.Context) int {
	var success []uuid.UUID
	var totalProcessed int
	var totalErr int
	var deliveryChan = make(chan *DeliveryReport, r.settings.MaxEventsPerBatch)
	var wg sync.WaitGroup

	r.logger.Debug("processing outbox records")

	go func() {
		for dr := range deliveryChan {
			if dr.Error != nil {
				r.logger.Error("delivery problem", dr.Error)
				totalErr++
				r.errorCtr.Inc(1)
			} else {
				r.logger.Debug(dr.Details)
				success = append(success, dr.Record.ID)
				r.successCtr.Inc(1)
			}
			totalProcessed++
			wg.Done()
		}
	}()

	err := r.repository.FindInBatches(ctx, r.settings.MaxEventsPerBatch, r.settings.MaxEventsPerInterval, func(batch []*Record) error {
		r.logger.Debug(fmt.Sprintf("emitting %d outbox records", len(batch)))
		for _, o := range batch {
			wg.Add(1)
			if err := r.emitter.Emit(o, deliveryChan); err != nil {
				wg.Done()
				// left in the outbox, the next iteration retries it
				r.logger.Error(fmt.Sprintf("emitting outbox record '%s'", o.ID), err)
				r.errorCtr.Inc(1)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("reading outbox records in batches", err)
	}

	wg.Wait()
	close(deliveryChan)
	if totalProcessed > 0 {
		r.logger.Info(fmt.Sprintf("%d outbox records delivered (with %d failed) from a total of %d processed", len(success), totalErr, totalProcessed))
	}

	if len(success) > 0 {
		if err := r.repository.DeleteInBatches(ctx, r.settings.MaxEventsPerBatch, success); err != nil {
			r.logger.Error("deleting delivered outbox records in batches", err)
		}
	}
	return len(success)
}
