package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pos-backoffice/wirepos/internal/domain/invoice"
	"github.com/pos-backoffice/wirepos/internal/platform/persistence"
)

// InvoiceRepository implements the invoice.Repository interface for PostgreSQL.
// Only the payment columns are touched; the invoices table belongs to the back office.
type InvoiceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// LinkPayment stores the gateway invoice id and transaction id on the invoice
func (r *InvoiceRepository) LinkPayment(ctx context.Context, link invoice.PaymentLink) error {
	query := `
		UPDATE invoices
		SET gateway_invoice_id = $1, payment_transaction_id = $2, payment_linked_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query,
		link.GatewayInvoiceID,
		link.TransactionID,
		link.LinkedAt,
		link.InvoiceID,
	)
	if err != nil {
		r.logger.Error("Failed to link payment to invoice",
			"invoice_id", link.InvoiceID,
			"transaction_id", link.TransactionID,
			"error", err,
		)
		return fmt.Errorf("failed to link payment to invoice: %w", err)
	}

	if result.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: link.InvoiceID}
	}

	return nil
}
