package producers

import (
	"context"
	"log/slog"
)

// NoopPublisher stands in for Kafka when KAFKA_ENABLED is false. Messages are
// logged at debug level and dropped.
type NoopPublisher struct {
	logger *slog.Logger
}

var (
	_ MessagePublisher    = (*NoopPublisher)(nil)
	_ DeadLetterPublisher = (*NoopPublisher)(nil)
)

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, key string, _ interface{}) error {
	p.logger.Debug("Kafka disabled, dropping message", "key", key)
	return nil
}

func (p *NoopPublisher) PublishToDLQ(_ context.Context, key string, _ []byte, reason string) error {
	p.logger.Warn("Kafka disabled, dropping dead letter", "key", key, "reason", reason)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
