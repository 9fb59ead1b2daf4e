// Package outbox queues events inside business transactions and relays them
// to the broker afterwards (polling publisher variant of the transactional
// outbox pattern).
package outbox

import (
	"context"
	"fmt"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/logger"
)

// Outbox is the write side: it stores encoded events next to the business
// changes that produced them.
type Outbox struct {
	repository Repository
	codec      event.Codec
}

func New(r Repository, c event.Codec) *Outbox {
	if r == nil || c == nil {
		panic("you must provide a repository and a codec")
	}
	return &Outbox{repository: r, codec: c}
}

// Publish stores e within the business transaction carried by ctx. The
// event is emitted by the Relay once the transaction is committed.
func (o *Outbox) Publish(ctx context.Context, e *event.Envelope) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := o.codec.Encode(e)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", e, err)
	}
	return o.repository.Save(ctx, &Record{
		ID:            e.EventID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       payload,
	})
}

// SetLogger forwards l to the repository when it accepts one.
func (o *Outbox) SetLogger(l logger.Logger) {
	if lg, ok := o.repository.(logger.Loggable); ok {
		lg.SetLogger(l)
	}
}
