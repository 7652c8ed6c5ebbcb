package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventTypeHeader carries the event name so consumers can filter without decoding
const EventTypeHeader = "event-type"

// TransactionEventProducer publishes finalized-transaction events keyed by transaction id,
// so every event of one transaction lands on the same partition
type TransactionEventProducer struct {
	logger    *slog.Logger
	writer    KafkaWriter
	topic     string
	eventType string
}

// NewTransactionEventProducer ensures the events topic exists and opens an async writer
func NewTransactionEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TransactionEventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	if err := ensureTopic(ctx, cfg, cfg.EventsTopic, logger); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write transaction events", "topic", cfg.EventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Wrote transaction events", "topic", cfg.EventsTopic, "count", len(messages))
			}
		},
	}

	return &TransactionEventProducer{
		logger:    logger,
		writer:    writer,
		topic:     cfg.EventsTopic,
		eventType: "TransactionFinalized",
	}, nil
}

func (p *TransactionEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(p.eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish transaction event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish transaction event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published transaction event", "topic", p.topic, "key", key)
	return nil
}

func (p *TransactionEventProducer) Close() error {
	p.logger.Info("Closing transaction event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
