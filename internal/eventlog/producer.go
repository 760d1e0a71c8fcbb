package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/keeperwatch/pricewatch/pkg/apperrors"
)

// Producer publishes JSON-encoded events keyed by product code to the two
// fixed topics. A failed send is logged but never aborts the calling
// pipeline — the relational write is the source of truth.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer builds a Producer against the given brokers. The writer
// targets no single topic; each Send call names its topic explicitly.
func NewProducer(brokers []string, logger *slog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		logger: logger.With("component", "eventlog.producer"),
	}
}

// Send publishes payload to topic keyed by key, blocking until the broker
// acknowledges (at-least-once). Returns *apperrors.EventLogUnavailable on
// failure; callers must not treat this as fatal.
func (p *Producer) Send(ctx context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
	})
	if err != nil {
		p.logger.Warn("event log publish failed", "topic", topic, "key", key, "error", err)
		return &apperrors.EventLogUnavailable{Err: err}
	}
	return nil
}

// Ping verifies broker reachability with a noop write to a health topic, as
// the scheduler's startup sequence requires before proceeding (§4.8 step 3).
func (p *Producer) Ping(ctx context.Context) error {
	return p.Send(ctx, "keeper-health", "startup", map[string]string{"event_type": "noop"})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
