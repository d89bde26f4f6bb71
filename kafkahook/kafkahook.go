// Package kafkahook publishes ledger lifecycle events to a Kafka topic.
//
// Each committed or reverted transaction becomes one JSON event message,
// keyed by transaction ID so per-transaction ordering is preserved within
// a partition. Publishing is best-effort: broker failures are logged and
// never surface to the committing caller.
package kafkahook

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/dway/ledger/plugin"
	"github.com/dway/ledger/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Publisher)(nil)
	_ plugin.OnTransactionCommitted = (*Publisher)(nil)
	_ plugin.OnTransactionReverted  = (*Publisher)(nil)
	_ plugin.OnShutdown             = (*Publisher)(nil)
)

// Event types carried in the envelope.
const (
	EventTransactionCommitted = "transaction.committed"
	EventTransactionReverted  = "transaction.reverted"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "ledger.transactions"

// Event is the JSON envelope written to Kafka.
type Event struct {
	ID          string                   `json:"id"`
	Type        string                   `json:"type"`
	Ledger      string                   `json:"ledger"`
	Transaction *transaction.Transaction `json:"transaction"`
	RevertedBy  string                   `json:"reverted_by,omitempty"`
	OccurredAt  time.Time                `json:"occurred_at"`
}

// Publisher is a plugin that writes ledger events to Kafka.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(p *Publisher) {
		p.writer.Topic = topic
	}
}

// NewPublisher creates a Publisher writing to the given brokers.
func NewPublisher(brokers []string, opts ...Option) *Publisher {
	p := &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    DefaultTopic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "kafka-publisher" }

// OnTransactionCommitted implements plugin.OnTransactionCommitted.
func (p *Publisher) OnTransactionCommitted(ctx context.Context, ledgerName string, txn interface{}, _ time.Duration) error {
	t, ok := txn.(*transaction.Transaction)
	if !ok {
		return nil
	}
	// Compensating transactions are published by OnTransactionReverted.
	if t.Type() == transaction.TypeRevert {
		return nil
	}
	p.publish(ctx, &Event{
		ID:          uuid.NewString(),
		Type:        EventTransactionCommitted,
		Ledger:      ledgerName,
		Transaction: t,
		OccurredAt:  time.Now().UTC(),
	}, t.ID.String())
	return nil
}

// OnTransactionReverted implements plugin.OnTransactionReverted.
func (p *Publisher) OnTransactionReverted(ctx context.Context, ledgerName string, original, compensating interface{}) error {
	orig, ok := original.(*transaction.Transaction)
	if !ok {
		return nil
	}
	var revertedBy string
	if comp, ok := compensating.(*transaction.Transaction); ok {
		revertedBy = comp.ID.String()
	}
	p.publish(ctx, &Event{
		ID:          uuid.NewString(),
		Type:        EventTransactionReverted,
		Ledger:      ledgerName,
		Transaction: orig,
		RevertedBy:  revertedBy,
		OccurredAt:  time.Now().UTC(),
	}, orig.ID.String())
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}

func (p *Publisher) publish(ctx context.Context, evt *Event, key string) {
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Warn("kafkahook: failed to marshal event",
			"type", evt.Type,
			"error", err,
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		p.logger.Warn("kafkahook: failed to publish event",
			"type", evt.Type,
			"key", key,
			"error", err,
		)
	}
}
