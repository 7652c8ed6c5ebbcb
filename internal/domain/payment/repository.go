package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store keeps in-flight and completed transactions.
// Implementations must be safe for concurrent use and must never hand out
// a record that another goroutine can still mutate.
type Store interface {
	// Create fails with ErrDuplicateTransaction if the id is taken
	Create(ctx context.Context, tx *Transaction) error

	// Get returns a snapshot copy or ErrTransactionNotFound
	Get(ctx context.Context, id string) (*Transaction, error)

	// Update applies fn atomically to one record and returns the stored result.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, id string, fn func(tx *Transaction) error) (*Transaction, error)

	// ListPending returns every PENDING transaction, oldest first
	ListPending(ctx context.Context) ([]*Transaction, error)

	// ListFinishedBefore returns ids of terminal transactions completed before cutoff
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	Delete(ctx context.Context, id string) error
}

// AddRequestInput is the charge sent to the gateway
type AddRequestInput struct {
	DeviceID string
	Amount   decimal.Decimal
	Invoice  string
	ID       string
	Kind     string
}

// AddRequestOutput is the gateway's acknowledgement of a queued charge
type AddRequestOutput struct {
	RequestID string
	Raw       string
}

// CheckRequestOutput is one poll answer; an empty ResponseString means not ready
type CheckRequestOutput struct {
	ResponseString string
	Raw            string
}

// Gateway is the external terminal-processing service
type Gateway interface {
	// AddRequest queues a charge. Upstream failures are returned as *GatewayError.
	AddRequest(ctx context.Context, in AddRequestInput) (*AddRequestOutput, error)
	CheckRequest(ctx context.Context, deviceID, requestID string) (*CheckRequestOutput, error)
}
