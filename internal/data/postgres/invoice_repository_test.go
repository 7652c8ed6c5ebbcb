package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/pos-backoffice/wirepos/internal/domain/invoice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceRepository_LinkPayment(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &InvoiceRepository{querier: mock, logger: newTestLogger()}
	query := `UPDATE invoices\s+SET gateway_invoice_id = \$1, payment_transaction_id = \$2, payment_linked_at = \$3\s+WHERE id = \$4`
	link := invoice.PaymentLink{
		InvoiceID:        "INV001",
		TransactionID:    "tx-1",
		GatewayInvoiceID: strPtr("WINV01"),
		LinkedAt:         time.Now(),
	}

	t.Run("Linked", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(link.GatewayInvoiceID, link.TransactionID, link.LinkedAt, link.InvoiceID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.LinkPayment(ctx, link))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownInvoice", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(link.GatewayInvoiceID, link.TransactionID, link.LinkedAt, link.InvoiceID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.LinkPayment(ctx, link)
		assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound{InvoiceID: "INV001"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		expectedErr := errors.New("connection refused")
		mock.ExpectExec(query).
			WithArgs(link.GatewayInvoiceID, link.TransactionID, link.LinkedAt, link.InvoiceID).
			WillReturnError(expectedErr)

		err := repo.LinkPayment(ctx, link)
		assert.ErrorIs(t, err, expectedErr)
		assert.NotErrorIs(t, err, invoice.ErrInvoiceNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WithTxUsesTransaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(query).
			WithArgs(link.GatewayInvoiceID, link.TransactionID, link.LinkedAt, link.InvoiceID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.WithTx(tx).LinkPayment(ctx, link))
		require.NoError(t, tx.Commit(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
