package service

import (
	"context"

	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/record"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
)

// ChargeService defines the interface for card charge operations
type ChargeService interface {
	// Initiate validates the command, queues the charge on the gateway and starts
	// background reconciliation. Returns ValidationError, ErrDuplicateTransaction,
	// *GatewayError or ErrMissingRequestID before any transaction is stored.
	Initiate(ctx context.Context, req *ChargeRequest) (*ChargeReceipt, error)

	// ApplyResponse completes a PENDING transaction with a pushed terminal response
	// Returns ErrTransactionNotFound or ErrTransactionFinalized
	ApplyResponse(ctx context.Context, id, responseString string) (*payment.Transaction, error)
}

// StatusService defines the read side over the transaction store
type StatusService interface {
	// GetTransaction returns ErrTransactionNotFound for unknown ids
	GetTransaction(ctx context.Context, id string) (*payment.Transaction, error)
	ListPending(ctx context.Context) ([]*payment.Transaction, error)
	ListExchanges(ctx context.Context, id string) ([]*audit.Exchange, error)
}

// LinkService copies a transaction into durable storage once its invoice is confirmed
type LinkService interface {
	// Link upserts the payment record and updates the invoice in one database transaction.
	// An empty invoiceID falls back to the transaction's invoice reference.
	Link(ctx context.Context, transactionID, invoiceID string) (*record.PaymentRecord, error)
}

// PollScheduler runs at most one background poller per transaction
type PollScheduler interface {
	Schedule(id string) error
	Cancel(id string) bool
}

// Notifier records gateway exchanges and announces finalized transactions
type Notifier interface {
	Exchange(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload, errMessage string)
	Finalized(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload string)
}
