package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
)

const topicPrefix = "asd"

// Payload is implemented by every known domain event. The event type is the
// tag that selects the concrete payload on the wire.
type Payload interface {
	EventType() string
	AggregateType() string
	AggregateID() string
}

// Envelope wraps a domain event with the metadata shared by all events.
type Envelope struct {
	EventID       uuid.UUID // globally unique, usable as an idempotency key
	AggregateID   string    // business identifier, also the message key
	AggregateType string    // the aggregate type (e.g. "Person")
	EventType     string    // the event type (e.g. "PersonUpdated")
	OccurredAt    time.Time
	Payload       Payload
}

// New wraps p in a fresh envelope stamped with a new id and the current time.
func New(p Payload) *Envelope {
	return &Envelope{
		EventID:       uuid.New(),
		AggregateID:   p.AggregateID(),
		AggregateType: p.AggregateType(),
		EventType:     p.EventType(),
		OccurredAt:    time.Now().UTC(),
		Payload:       p,
	}
}

// Validate checks the metadata every envelope must carry.
func (e *Envelope) Validate() error {
	if e == nil {
		return errors.New("envelope is nil")
	}
	if e.EventID == uuid.Nil {
		return errors.New("envelope event id is empty")
	}
	if e.AggregateID == "" {
		return errors.New("envelope aggregate id is empty")
	}
	if e.AggregateType == "" {
		return errors.New("envelope aggregate type is empty")
	}
	if e.EventType == "" {
		return errors.New("envelope event type is empty")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("envelope occurred at is zero")
	}
	if e.Payload == nil {
		return errors.New("envelope payload is nil")
	}
	return nil
}

func (e *Envelope) String() string {
	return fmt.Sprintf("{id=%s, type=%s, aggregate=%s/%s}", e.EventID, e.EventType, e.AggregateType, e.AggregateID)
}

// TopicName builds the topic an event type is published to (e.g. if
// eventType="PersonCreated" then topic name is "asd-person-created").
func TopicName(eventType string) string {
	return fmt.Sprintf("%s-%s", topicPrefix, strcase.ToKebab(eventType))
}
