package test

import (
	"fmt"
	"sync"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/metrics"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	tally "github.com/uber-go/tally/v4"
)

// TestLogger records every log line so tests can assert on them.
type TestLogger struct {
	mu    sync.Mutex
	Lines []LogLine
}

type LogLine struct {
	Level string
	Msg   string
	Err   error
}

var _ logger.Logger = (*TestLogger)(nil)

func (l *TestLogger) add(level, msg string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, LogLine{Level: level, Msg: msg, Err: err})
}

func (l *TestLogger) Debug(msg string) { l.add("debug", msg, nil) }
func (l *TestLogger) Info(msg string) { l.add("info", msg, nil) }
func (l *TestLogger) Warn(msg string) { l.add("warn", msg, nil) }
func (l *TestLogger) Error(msg string, err error) { l.add("error", msg, err) }

// Count returns how many lines were logged at level.
func (l *TestLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.Lines {
		if line.Level == level {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the recorded lines.
func (l *TestLogger) Snapshot() []LogLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogLine(nil), l.Lines...)
}

// TestCounter is a goroutine safe in-memory metrics.Counter.
type TestCounter struct {
	mu  sync.Mutex
	ctr int64
}

var _ metrics.Counter = (*TestCounter)(nil)

func (c *TestCounter) Inc(delta int64) {
	c.mu.Lock()
	c.ctr += delta
	c.mu.Unlock()
}

func (c *TestCounter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctr
}

type MockedTallyCounter struct {
	Ctr    int64
	Output chan int64
}

var _ tally.Counter = (*MockedTallyCounter)(nil)

func (c *MockedTallyCounter) Inc(delta int64) {
	c.Ctr += delta
	c.Output <- c.Ctr
}

type MockedKafkaProducer struct {
	MockedReportToSend kafka.Event
	Snitch             chan *kafka.Message
	RetVal             error
}

func (p *MockedKafkaProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	// send the message to the outside in order to assert it.
	p.Snitch <- msg

	if p.RetVal != nil {
		return p.RetVal
	}

	// send a predefined delivery report to the delivery channel.
	deliveryChan <- p.MockedReportToSend
	return nil
}

type MockedKafkaEvent struct{}

func (*MockedKafkaEvent) String() string {
	return "mock"
}

// MockedKafkaConsumer serves queued messages in order and honours Seek by
// rewinding to the requested offset, the way a partition would redeliver.
type MockedKafkaConsumer struct {
	mu         sync.Mutex
	Messages   []*kafka.Message
	pos        int
	Committed  []kafka.Offset
	Seeks      []kafka.Offset
	Subscribed []string
	ReadErr    error
	Closed     bool
}

func (c *MockedKafkaConsumer) SubscribeTopics(topics []string, _ kafka.RebalanceCb) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subscribed = append(c.Subscribed, topics...)
	return nil
}

func (c *MockedKafkaConsumer) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	c.mu.Lock()
	if c.ReadErr != nil {
		err := c.ReadErr
		c.ReadErr = nil
		c.mu.Unlock()
		return nil, err
	}
	if c.pos >= len(c.Messages) {
		c.mu.Unlock()
		time.Sleep(timeout)
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	m := c.Messages[c.pos]
	c.pos++
	c.mu.Unlock()
	return m, nil
}

func (c *MockedKafkaConsumer) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Committed = append(c.Committed, m.TopicPartition.Offset)
	return []kafka.TopicPartition{m.TopicPartition}, nil
}

func (c *MockedKafkaConsumer) Seek(tp kafka.TopicPartition, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Seeks = append(c.Seeks, tp.Offset)
	for i, m := range c.Messages {
		if m.TopicPartition.Offset == tp.Offset {
			c.pos = i
			return nil
		}
	}
	return fmt.Errorf("offset %v not found", tp.Offset)
}

func (c *MockedKafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// CommittedOffsets returns a copy of the committed offsets.
func (c *MockedKafkaConsumer) CommittedOffsets() []kafka.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]kafka.Offset(nil), c.Committed...)
}

// SeekOffsets returns a copy of the offsets the consumer was rewound to.
func (c *MockedKafkaConsumer) SeekOffsets() []kafka.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]kafka.Offset(nil), c.Seeks...)
}
