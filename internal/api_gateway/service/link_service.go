package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pos-backoffice/wirepos/internal/domain/invoice"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/record"
	"github.com/pos-backoffice/wirepos/internal/platform/persistence"
)

// LinkServiceImpl implements the LinkService interface
type LinkServiceImpl struct {
	store    payment.Store
	records  record.Repository
	invoices invoice.Repository
	txRunner persistence.TxRunner
	logger   *slog.Logger
	now      func() time.Time
}

// NewLinkService creates a new link service
func NewLinkService(
	logger *slog.Logger,
	store payment.Store,
	records record.Repository,
	invoices invoice.Repository,
	txRunner persistence.TxRunner,
) LinkService {
	return &LinkServiceImpl{
		store:    store,
		records:  records,
		invoices: invoices,
		txRunner: txRunner,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Link is idempotent: repeated calls refresh the same record, keyed by transaction id
func (s *LinkServiceImpl) Link(ctx context.Context, transactionID, invoiceID string) (*record.PaymentRecord, error) {
	tx, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if invoiceID == "" {
		invoiceID = tx.InvoiceRef
	}

	logger := s.logger.With("transaction_id", transactionID, "invoice_id", invoiceID)

	rec := record.NewPaymentRecord(tx, invoiceID, s.now())
	var previous *record.PaymentRecord
	err = s.txRunner.ExecuteTx(ctx, func(dbTx pgx.Tx) error {
		records := s.records.WithTx(dbTx)

		existing, err := records.GetByTransactionID(ctx, tx.ID)
		switch {
		case err == nil:
			previous = existing
			rec.ID = existing.ID
		case errors.Is(err, record.ErrRecordNotFound{}):
		default:
			return fmt.Errorf("failed to load payment record: %w", err)
		}

		if err := records.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("failed to upsert payment record: %w", err)
		}

		link := invoice.PaymentLink{
			InvoiceID:        invoiceID,
			TransactionID:    tx.ID,
			GatewayInvoiceID: rec.GatewayInvoiceID,
			LinkedAt:         rec.LinkedAt,
		}
		if err := s.invoices.WithTx(dbTx).LinkPayment(ctx, link); err != nil {
			return fmt.Errorf("failed to link invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to link transaction to invoice", "error", err)
		return nil, err
	}

	if previous != nil {
		logger.Info("Transaction relinked", "state", tx.State, "record_id", rec.ID.String(), "previous_invoice_id", previous.InvoiceID)
		return rec, nil
	}
	logger.Info("Transaction linked to invoice", "state", tx.State, "record_id", rec.ID.String())
	return rec, nil
}
