// Package publish streams archived ledgers to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lazypower/larder/internal/engine"
)

// RunIDHeader carries the archive run id on every message.
const RunIDHeader = "run-id"

// MessageWriter is the slice of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes ledger records to one topic, keyed by order id so each
// order's history lands on a single partition in order.
type Publisher struct {
	w         MessageWriter
	batchSize int
}

// NewWriter builds a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
}

// New creates a Publisher for the given brokers and topic.
func New(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("publish: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("publish: no topic configured")
	}
	return NewWithWriter(NewWriter(brokers, topic)), nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w MessageWriter) *Publisher {
	return &Publisher{w: w, batchSize: 100}
}

// Messages converts a run's ledger into Kafka messages.
func Messages(runID string, actions []engine.Action) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(actions))
	for i, rec := range engine.Export(actions) {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(rec.ID),
			Value:   value,
			Headers: []kafka.Header{{Key: RunIDHeader, Value: []byte(runID)}},
		})
	}
	return msgs, nil
}

// PublishRun writes every action of a run, in ledger order. It returns the
// number of messages written before any failure.
func (p *Publisher) PublishRun(ctx context.Context, runID string, actions []engine.Action) (int, error) {
	msgs, err := Messages(runID, actions)
	if err != nil {
		return 0, err
	}

	sent := 0
	for start := 0; start < len(msgs); start += p.batchSize {
		end := min(start+p.batchSize, len(msgs))
		if err := p.w.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return sent, fmt.Errorf("publish run %s: %w", runID, err)
		}
		sent = end
	}
	return sent, nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
