package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LockMaxDuration bounds how long a relay may hold the outbox lock.
const LockMaxDuration = time.Second * 15

// TxKey is the context key under which callers store the business
// transaction that Save must join.
type TxKey any

// Record contains all the information stored in the underlying outbox table.
type Record struct {
	ID            uuid.UUID // the event id
	AggregateType string    // the aggregate type (e.g. "Document")
	AggregateID   string    // the aggregate identifier, used as message key
	EventType     string    // the event type (e.g "DocumentExpired")
	Payload       []byte    // encoded envelope
	CreatedAt     time.Time
}

// Repository manages outbox records persistent operations.
type Repository interface {

	// Save persists an outbox record. This operation should be called inside
	// an existing business transaction provided in the context.
	Save(ctx context.Context, r *Record) error

	// AcquireLock gets a lock on the outbox table. Implementations should use
	// locking mechanisms to ensure that only one relay gets the lock.
	AcquireLock(ctx context.Context, relayID uuid.UUID) (bool, error)

	// ReleaseLock releases a lock on the outbox table.
	ReleaseLock(ctx context.Context, relayID uuid.UUID) error

	// FindInBatches retrieves the registered records, oldest first, to be
	// processed in batches (limit -1 = unlimited).
	FindInBatches(ctx context.Context, batchSize int, limit int, fc func([]*Record) error) error

	// DeleteInBatches deletes the provided records from the outbox table in batches.
	DeleteInBatches(ctx context.Context, batchSize int, ids []uuid.UUID) error
}

// DeliveryReport contains information about an outbox record delivery report.
type DeliveryReport struct {
	Record  *Record // record related to the delivery
	Error   error   // error during the delivery if any
	Details string  // more information about the delivery
}

// Emitter defines the contract for emitters of outbox records.
type Emitter interface {
	// Emit sends the outbox record to a message broker. Exactly one report is
	// written to the channel for every call that returns a nil error.
	Emit(*Record, chan *DeliveryReport) error
}
