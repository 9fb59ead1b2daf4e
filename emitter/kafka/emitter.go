// Package kafka emits outbox records to Kafka, one topic per event type.
package kafka

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/outbox"
	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// kafkaProducer is the subset of *kafka.Producer used by the emitter.
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

type Emitter struct {
	producer kafkaProducer
	logger   logger.Logger
}

var _ outbox.Emitter = (*Emitter)(nil)
var _ logger.Loggable = (*Emitter)(nil)

func New(p kafkaProducer) *Emitter {
	if p == nil || reflect.ValueOf(p).IsNil() {
		panic("producer is mandatory")
	}
	return &Emitter{
		producer: p,
		logger:   &logger.NopLogger{},
	}
}

func (e *Emitter) SetLogger(l logger.Logger) {
	e.logger = logger.OrNop(l)
}

// Emit produces r keyed by its aggregate id, so that every event of an
// aggregate lands in the same partition. The delivery report is written to dc
// once the broker answers.
func (e *Emitter) Emit(r *outbox.Record, dc chan *outbox.DeliveryReport) error {
	internal := make(chan kafka.Event, 1)
	topic := event.TopicName(r.EventType)
	err := e.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(r.AggregateID),
		Value:          r.Payload,
		Headers: []kafka.Header{
			{Key: "id", Value: []byte(r.ID.String())},
			{Key: "eventType", Value: []byte(r.EventType)},
			{Key: "createdAt", Value: []byte(strconv.FormatInt(r.CreatedAt.UnixMilli(), 10))},
		},
	}, internal)
	if err != nil {
		return err
	}

	// internal serves a single Produce call, so one event is all we wait for.
	go func() {
		ev := <-internal
		switch m := ev.(type) {
		case *kafka.Message:
			dc <- &outbox.DeliveryReport{
				Record: r,
				Error:  m.TopicPartition.Error,
				Details: fmt.Sprintf("delivered message to topic %s [%d] at offset %v",
					*m.TopicPartition.Topic, m.TopicPartition.Partition, m.TopicPartition.Offset),
			}
		default:
			e.logger.Debug(fmt.Sprintf("unexpected delivery event: %s", ev))
			dc <- &outbox.DeliveryReport{
				Record: r,
				Error:  fmt.Errorf("unexpected delivery event for record '%s': %s", r.ID, ev),
			}
		}
	}()
	return nil
}
