// Package readmodel keeps local, denormalized copies of other services' data
// current by applying their domain events.
package readmodel

import (
	"context"
	"errors"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/google/uuid"
)

// Cache names.
const (
	PersonCache = "person_cache"
	GroupCache  = "group_cache"
)

var (
	// ErrMalformedEvent marks an event whose payload is not the one the
	// synchronizer expects. Retrying cannot fix it.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrTransientProcessing marks a failure while applying an event. The
	// event must be redelivered.
	ErrTransientProcessing = errors.New("transient processing failure")
)

// Entry is one synchronized aggregate in a local cache.
type Entry struct {
	Cache        string
	Key          uuid.UUID
	Fields       map[string]any
	LastSyncedAt time.Time
	Source       string
}

// CachePayload is an event payload that can be projected onto an Entry.
// Fields returns only the values carried by the event; absent keys mean
// "unchanged".
type CachePayload interface {
	event.Payload
	BusinessKey() uuid.UUID
	Fields() map[string]any
}

// Store persists cache entries. Only synchronizers write to it.
type Store interface {
	// Find returns the entry for key, or nil when there is none.
	Find(ctx context.Context, cache string, key uuid.UUID) (*Entry, error)

	// Save merges e.Fields into the stored fields of the entry, inserting it
	// when created is true. Stored keys missing from e.Fields are kept. The
	// merge must be atomic: synchronizers for different event types may write
	// the same key concurrently.
	Save(ctx context.Context, e *Entry, created bool) error
}

// Handler applies one envelope and reports whether it may be acknowledged.
type Handler interface {
	Apply(ctx context.Context, e *event.Envelope) Result
}

// Outcome tags a Result.
type Outcome int

const (
	Applied Outcome = iota + 1 // upserted, acknowledge
	Skipped                    // malformed or unexpected, acknowledge and drop
	Failed                     // transient failure, do not acknowledge
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of applying an event. Err is set for Skipped and
// Failed.
type Result struct {
	Outcome Outcome
	Err     error
}

// Ack reports whether the delivery that produced the event may be committed.
func (r Result) Ack() bool {
	return r.Outcome == Applied || r.Outcome == Skipped
}
