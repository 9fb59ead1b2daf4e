package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/metrics"
	"github.com/google/uuid"
)

// ErrStaleRecord is returned by Repository.Transition when the record is no
// longer in the status it was read with.
var ErrStaleRecord = errors.New("record status changed concurrently")

// Repository reads and advances time-sensitive records of one kind.
type Repository interface {

	// FindDue streams, in batches, the non terminal records expiring at or
	// before threshold.
	FindDue(ctx context.Context, threshold time.Time, batchSize int, fc func([]*Record) error) error

	// Transition moves rec from rec.Status to status, stamping at, only if the
	// stored status still equals rec.Status (ErrStaleRecord otherwise). When
	// inTx is not nil it runs inside the same transaction, whose handle is
	// carried by the context it receives; an inTx error rolls back.
	Transition(ctx context.Context, rec *Record, status Status, at time.Time, inTx func(ctx context.Context) error) error
}

// Publisher queues an event for emission. It must take part in the
// transaction carried by ctx.
type Publisher interface {
	Publish(ctx context.Context, e *event.Envelope) error
}

// Summary reports the outcome of one sweep.
type Summary struct {
	Kind              Kind
	ExpiredCount      int
	ExpiringSoonCount int
	StaleCount        int
	FailedIDs         []uuid.UUID
}

func (s Summary) String() string {
	return fmt.Sprintf("sweep of '%s' records: %d expired, %d expiring soon, %d skipped as stale, %d failed",
		s.Kind, s.ExpiredCount, s.ExpiringSoonCount, s.StaleCount, len(s.FailedIDs))
}

// Sweeper advances the records of one kind.
type Sweeper struct {
	kind        Kind
	settings    Settings
	repository  Repository
	publisher   Publisher
	logger      logger.Logger
	expiredCtr  metrics.Counter
	expiringCtr metrics.Counter
	failedCtr   metrics.Counter
}

// opt allows optional configuration.
type opt func(s *Sweeper)

// WithLogger allows clients to configure an optional logger.
func WithLogger(l logger.Logger) opt {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCounters configures the counters of expired, expiring and failed
// records. Nil counters are ignored.
func WithCounters(expired, expiring, failed metrics.Counter) opt {
	return func(s *Sweeper) {
		s.expiredCtr = metrics.OrNop(expired)
		s.expiringCtr = metrics.OrNop(expiring)
		s.failedCtr = metrics.OrNop(failed)
	}
}

func NewSweeper(kind Kind, r Repository, p Publisher, s Settings, options ...opt) *Sweeper {
	if r == nil || p == nil {
		panic("you must provide a repository and a publisher")
	}
	if kind != KindDocument && kind != KindPayment {
		panic(fmt.Sprintf("unknown record kind '%s'", kind))
	}
	if err := validateSettings(&s); err != nil {
		panic(err)
	}

	sw := &Sweeper{
		kind:        kind,
		settings:    s,
		repository:  r,
		publisher:   p,
		logger:      &logger.NopLogger{},
		expiredCtr:  &metrics.NopCounter{},
		expiringCtr: &metrics.NopCounter{},
		failedCtr:   &metrics.NopCounter{},
	}
	for _, o := range options {
		o(sw)
	}
	if l, ok := r.(logger.Loggable); ok {
		l.SetLogger(sw.logger)
	}
	return sw
}

func (s *Sweeper) Kind() Kind {
	return s.kind
}

func (s *Sweeper) Settings() Settings {
	return s.settings
}

// Run performs one sweep as of now. A failing record is reported in
// Summary.FailedIDs and does not stop the sweep; the returned error is only
// set when the records could not be read or ctx was cancelled.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Summary, error) {
	summary := Summary{Kind: s.kind}
	threshold := now.Add(s.settings.Window)

	err := s.repository.FindDue(ctx, threshold, s.settings.BatchSize, func(batch []*Record) error {
		s.logger.Debug(fmt.Sprintf("sweeping %d '%s' records", len(batch), s.kind))
		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			to, changed, err := s.advance(ctx, rec, now)
			switch {
			case errors.Is(err, ErrStaleRecord):
				s.logger.Debug(fmt.Sprintf("record %s changed concurrently, skipped", rec))
				summary.StaleCount++
			case err != nil:
				s.logger.Error(fmt.Sprintf("advancing record %s", rec), err)
				summary.FailedIDs = append(summary.FailedIDs, rec.ID)
				s.failedCtr.Inc(1)
			case !changed:
			case to == StatusExpired:
				summary.ExpiredCount++
				s.expiredCtr.Inc(1)
			case to == StatusExpiringSoon:
				summary.ExpiringSoonCount++
				s.expiringCtr.Inc(1)
			}
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("sweeping '%s' records: %w", s.kind, err)
	}
	return summary, nil
}

// advance moves rec to the status it should have at now. changed is false when
// the record already had that status, in which case nothing is written.
func (s *Sweeper) advance(ctx context.Context, rec *Record, now time.Time) (to Status, changed bool, err error) {
	if !rec.Status.Valid() {
		return rec.Status, false, fmt.Errorf("unknown status '%s'", rec.Status)
	}
	to = rec.Status.Next(rec.ExpiresAt, now, s.settings.Window)
	if to == rec.Status {
		return to, false, nil
	}

	var inTx func(context.Context) error
	if to == StatusExpired {
		e, err := expiryEvent(rec, now)
		if err != nil {
			return rec.Status, false, err
		}
		inTx = func(ctx context.Context) error {
			return s.publisher.Publish(ctx, e)
		}
	}
	if err := s.repository.Transition(ctx, rec, to, now.UTC(), inTx); err != nil {
		return rec.Status, false, err
	}
	return to, true, nil
}
