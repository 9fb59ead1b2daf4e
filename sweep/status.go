// Package sweep periodically advances time-sensitive records (compliance
// documents, fees) through VALID, EXPIRING_SOON and EXPIRED, and emits one
// event when a record becomes EXPIRED.
package sweep

import (
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/google/uuid"
)

// Status of a time-sensitive record. Statuses are ordered and a record never
// moves backwards.
type Status string

const (
	StatusValid        Status = "VALID"
	StatusExpiringSoon Status = "EXPIRING_SOON"
	StatusExpired      Status = "EXPIRED"
)

func (s Status) rank() int {
	switch s {
	case StatusValid:
		return 0
	case StatusExpiringSoon:
		return 1
	case StatusExpired:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusExpired
}

// Next returns the status a record in s should have at now, given its expiry
// and the warning window. The result is never lower than s.
func (s Status) Next(expiresAt, now time.Time, window time.Duration) Status {
	target := StatusValid
	switch {
	case now.After(expiresAt):
		target = StatusExpired
	case !now.Before(expiresAt.Add(-window)):
		target = StatusExpiringSoon
	}
	if target.rank() <= s.rank() {
		return s
	}
	return target
}

// Kind of time-sensitive record.
type Kind string

const (
	KindDocument Kind = "document"
	KindPayment  Kind = "payment"
)

// Record is a time-sensitive record as read by the sweep.
type Record struct {
	ID        uuid.UUID
	Kind      Kind
	PersonID  uuid.UUID
	AsdID     uuid.UUID
	Label     string // document type or fee reason
	Status    Status
	ExpiresAt time.Time // expiry date for documents, due date for fees
}

func (r *Record) String() string {
	return fmt.Sprintf("{kind=%s, id=%s, status=%s, expiresAt=%s}", r.Kind, r.ID, r.Status, r.ExpiresAt.Format(time.RFC3339))
}

// expiryEvent builds the event announcing that r became EXPIRED at now.
func expiryEvent(r *Record, now time.Time) (*event.Envelope, error) {
	var p event.Payload
	switch r.Kind {
	case KindDocument:
		p = event.DocumentExpired{
			DocumentID: r.ID,
			PersonID:   r.PersonID,
			AsdID:      r.AsdID,
			Tipo:       r.Label,
			ExpiresAt:  r.ExpiresAt.UTC(),
		}
	case KindPayment:
		p = event.PaymentOverdue{
			PaymentID: r.ID,
			PersonID:  r.PersonID,
			AsdID:     r.AsdID,
			Causale:   r.Label,
			DueDate:   r.ExpiresAt.UTC(),
		}
	default:
		return nil, fmt.Errorf("unknown record kind '%s'", r.Kind)
	}
	e := event.New(p)
	e.OccurredAt = now.UTC()
	return e, nil
}
