package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/pos-backoffice/wirepos/internal/platform/messaging/producers"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

const callbackSource = "kafka"

// ResponseApplier completes a pending transaction with a pushed terminal response
type ResponseApplier interface {
	ApplyResponse(ctx context.Context, id, responseString string) (*payment.Transaction, error)
}

// CallbackHandler handles terminal responses delivered on the callback topic
type CallbackHandler struct {
	applier  ResponseApplier
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewCallbackHandler creates a new handler
func NewCallbackHandler(
	logger *slog.Logger,
	applier ResponseApplier,
	producer producers.DeadLetterPublisher,
) *CallbackHandler {
	return &CallbackHandler{
		applier:  applier,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes one callback message. A nil return commits the offset.
func (h *CallbackHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var msg shared.CallbackMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		metrics.CallbacksReceived.WithLabelValues(callbackSource, "invalid").Inc()
		return h.deadLetter(ctx, key, value, "Failed to unmarshal callback message", err)
	}
	if msg.ID == "" {
		metrics.CallbacksReceived.WithLabelValues(callbackSource, "invalid").Inc()
		return h.deadLetter(ctx, key, value, "Callback message has no transaction id", errors.New("missing id"))
	}

	logger := h.logger.With("transaction_id", msg.ID)
	if msg.CorrelationID != "" {
		logger = logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Received terminal callback")

	tx, err := h.applier.ApplyResponse(ctx, msg.ID, msg.ResponseString)
	switch {
	case err == nil:
		metrics.CallbacksReceived.WithLabelValues(callbackSource, "applied").Inc()
		logger.Info("Applied terminal callback", "state", tx.State)
		return nil
	case errors.Is(err, payment.ErrTransactionFinalized{}):
		// Redelivery or the poller got there first
		metrics.CallbacksReceived.WithLabelValues(callbackSource, "already_finalized").Inc()
		logger.Info("Transaction already finalized, ignoring callback")
		return nil
	case errors.Is(err, payment.ErrTransactionNotFound{}):
		metrics.CallbacksReceived.WithLabelValues(callbackSource, "unknown").Inc()
		return h.deadLetter(ctx, key, value, "Callback for unknown transaction", err)
	default:
		metrics.CallbacksReceived.WithLabelValues(callbackSource, "failed").Inc()
		logger.Error("Failed to apply terminal callback", "error", err)
		return fmt.Errorf("applying callback for %s failed: %w", msg.ID, err)
	}
}

// deadLetter parks the message. The offset is committed only when the DLQ accepted it.
func (h *CallbackHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	h.logger.Error(reason, "error", cause, "message_key", string(key))

	if h.producer != nil {
		dlqReason := fmt.Sprintf("%s: %s", reason, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable callback to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", reason, cause)
}
