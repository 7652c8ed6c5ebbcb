package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/pos-backoffice/wirepos/internal/platform/messaging/producers"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

// Notifier records gateway exchanges and announces finalized transactions.
// Failures are logged and never change the transaction outcome.
type Notifier interface {
	// Exchange appends one raw gateway payload to the audit trail
	Exchange(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload, errMessage string)

	// Finalized audits the terminal payload, counts the outcome and publishes a TransactionFinalized event
	Finalized(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload string)
}

// NotifierImpl implements Notifier
type NotifierImpl struct {
	exchanges audit.Repository
	publisher producers.MessagePublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotifier creates a new notifier
func NewNotifier(
	exchanges audit.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) *NotifierImpl {
	return &NotifierImpl{
		exchanges: exchanges,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (n *NotifierImpl) Exchange(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload, errMessage string) {
	exchange := audit.NewExchange(tx, op, payload, errMessage, n.now())
	if err := n.exchanges.Record(ctx, exchange); err != nil {
		n.logger.Error("Failed to record gateway exchange",
			"transaction_id", tx.ID, "operation", op, "error", err,
		)
	}
}

func (n *NotifierImpl) Finalized(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload string) {
	logger := n.logger.With("transaction_id", tx.ID, "state", tx.State)

	n.Exchange(ctx, tx, op, payload, tx.ErrorMessage)
	metrics.TransactionsFinalized.WithLabelValues(string(tx.State)).Inc()

	if err := n.publisher.Publish(ctx, tx.ID, payment.NewFinalizedEvent(tx, n.now())); err != nil {
		logger.Error("Failed to publish finalized transaction event", "error", err)
		return
	}
	logger.Info("Transaction finalized", "attempts", tx.Attempts, "source", op)
}
