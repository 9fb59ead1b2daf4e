package kafka

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/readmodel"
	"github.com/confluentinc/confluent-kafka-go/kafka"
)

const (
	defaultPollTimeout  = 500 * time.Millisecond
	defaultRetryBackoff = time.Second
	seekTimeoutMs       = 5000
)

// kafkaConsumer is the subset of *kafka.Consumer used here.
type kafkaConsumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Seek(partition kafka.TopicPartition, timeoutMs int) error
	Close() error
}

// Settings tunes the consumer loop.
type Settings struct {
	PollTimeout  time.Duration // how long a single poll may block
	RetryBackoff time.Duration // pause before redelivering a failed event
}

func (s *Settings) withDefaults() {
	if s.PollTimeout <= 0 {
		s.PollTimeout = defaultPollTimeout
	}
	if s.RetryBackoff <= 0 {
		s.RetryBackoff = defaultRetryBackoff
	}
}

// Consumer feeds the events of one topic to a read-model handler, one message
// at a time. Offsets are committed only after the handler accepted the event;
// on failure the partition is rewound so the same event is delivered again.
type Consumer struct {
	consumer kafkaConsumer
	codec    event.Codec
	handler  readmodel.Handler
	topic    string
	settings Settings
	logger   logger.Logger
}

var _ logger.Loggable = (*Consumer)(nil)

func New(c kafkaConsumer, codec event.Codec, eventType string, h readmodel.Handler, s Settings) *Consumer {
	if c == nil || reflect.ValueOf(c).IsNil() {
		panic("consumer is mandatory")
	}
	if codec == nil || h == nil {
		panic("codec and handler are mandatory")
	}
	if eventType == "" {
		panic("event type is mandatory")
	}
	s.withDefaults()
	return &Consumer{
		consumer: c,
		codec:    codec,
		handler:  h,
		topic:    event.TopicName(eventType),
		settings: s,
		logger:   &logger.NopLogger{},
	}
}

// SetLogger sets an optional logger.
func (c *Consumer) SetLogger(l logger.Logger) {
	c.logger = logger.OrNop(l)
}

// Topic is the topic this consumer is subscribed to.
func (c *Consumer) Topic() string {
	return c.topic
}

// Run subscribes and processes messages until ctx is done or the client
// reports a fatal error.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.topic, err)
	}
	c.logger.Info(fmt.Sprintf("consuming %s", c.topic))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(c.settings.PollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("consuming %s: %w", c.topic, err)
				}
			}
			c.logger.Error(fmt.Sprintf("reading from %s", c.topic), err)
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg *kafka.Message) {
	env, err := c.codec.Decode(msg.Value)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("dropping undecodable message at %s: %v", msg.TopicPartition, err))
		c.commit(msg)
		return
	}

	res := c.handler.Apply(ctx, env)
	if res.Ack() {
		c.commit(msg)
		return
	}

	// Not acknowledged: rewind so the partition hands the same event back.
	if err := c.consumer.Seek(msg.TopicPartition, seekTimeoutMs); err != nil {
		c.logger.Error(fmt.Sprintf("rewinding %s", msg.TopicPartition), err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.settings.RetryBackoff):
	}
}

func (c *Consumer) commit(msg *kafka.Message) {
	// A failed commit only means a redelivery, which the handlers absorb.
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Error(fmt.Sprintf("committing %s", msg.TopicPartition), err)
	}
}
