package invoice

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// PaymentLink attaches a confirmed card payment to an invoice
type PaymentLink struct {
	InvoiceID        string
	TransactionID    string
	GatewayInvoiceID *string
	LinkedAt         time.Time
}

// Repository updates invoices owned by the back office
type Repository interface {
	// LinkPayment returns ErrInvoiceNotFound if the invoice does not exist
	LinkPayment(ctx context.Context, link PaymentLink) error
	WithTx(tx pgx.Tx) Repository
}

// ErrInvoiceNotFound indicates missing invoice
type ErrInvoiceNotFound struct {
	InvoiceID string
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found: " + e.InvoiceID
}

// Is implements the errors.Is interface for ErrInvoiceNotFound
func (e ErrInvoiceNotFound) Is(target error) bool {
	t, ok := target.(ErrInvoiceNotFound)
	if !ok {
		return false
	}
	return t.InvoiceID == "" || t.InvoiceID == e.InvoiceID
}
