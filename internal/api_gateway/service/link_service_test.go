package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pos-backoffice/wirepos/internal/data/memory"
	"github.com/pos-backoffice/wirepos/internal/domain/invoice"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/record"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type linkFixture struct {
	store    *memory.TransactionStore
	records  *MockRecordRepository
	invoices *MockInvoiceRepository
	txRunner *MockTxRunner
	service  LinkService
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()
	f := &linkFixture{
		store:    memory.NewTransactionStore(),
		records:  &MockRecordRepository{},
		invoices: &MockInvoiceRepository{},
		txRunner: &MockTxRunner{},
	}
	f.service = NewLinkService(newTestLogger(), f.store, f.records, f.invoices, f.txRunner)

	cmd, err := payment.ParseCommand("V|DEV_TERM_001|10000|INV001")
	require.NoError(t, err)
	tx := payment.NewTransaction("tx-1", cmd, "AUTH_DEVICE", "REQ-1", "test", time.Now())
	require.NoError(t, tx.RecordReady(payment.ParseResult(readyPayload), readyPayload, time.Now()))
	require.NoError(t, f.store.Create(context.Background(), tx))
	return f
}

func TestLinkService_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsToInvoiceRef", func(t *testing.T) {
		f := newLinkFixture(t)
		f.txRunner.On("ExecuteTx", ctx).Return(nil).Once()
		f.records.On("WithTx", nil).Return(f.records).Once()
		f.records.On("GetByTransactionID", ctx, "tx-1").Return(nil, record.ErrRecordNotFound{TransactionID: "tx-1"}).Once()
		f.records.On("Upsert", ctx, mock.MatchedBy(func(rec *record.PaymentRecord) bool {
			return rec.TransactionID == "tx-1" && rec.InvoiceID == "INV001" && rec.State == shared.TransactionStateDone
		})).Return(nil).Once()
		f.invoices.On("WithTx", nil).Return(f.invoices).Once()
		f.invoices.On("LinkPayment", ctx, mock.MatchedBy(func(link invoice.PaymentLink) bool {
			return link.InvoiceID == "INV001" &&
				link.TransactionID == "tx-1" &&
				link.GatewayInvoiceID != nil && *link.GatewayInvoiceID == "WINV01"
		})).Return(nil).Once()

		rec, err := f.service.Link(ctx, "tx-1", "")
		require.NoError(t, err)
		assert.Equal(t, "INV001", rec.InvoiceID)
		assert.NotEqual(t, uuid.Nil, rec.ID)
		require.NotNil(t, rec.AuthCode)
		assert.Equal(t, "AUTH123", *rec.AuthCode)
		assert.True(t, f.txRunner.committed)

		f.records.AssertExpectations(t)
		f.invoices.AssertExpectations(t)
		f.txRunner.AssertExpectations(t)
	})

	t.Run("ExplicitInvoice", func(t *testing.T) {
		f := newLinkFixture(t)
		f.txRunner.On("ExecuteTx", ctx).Return(nil).Once()
		f.records.On("WithTx", nil).Return(f.records).Once()
		f.records.On("GetByTransactionID", ctx, "tx-1").Return(nil, record.ErrRecordNotFound{TransactionID: "tx-1"}).Once()
		f.records.On("Upsert", ctx, mock.Anything).Return(nil).Once()
		f.invoices.On("WithTx", nil).Return(f.invoices).Once()
		f.invoices.On("LinkPayment", ctx, mock.MatchedBy(func(link invoice.PaymentLink) bool {
			return link.InvoiceID == "DB-42"
		})).Return(nil).Once()

		rec, err := f.service.Link(ctx, "tx-1", "DB-42")
		require.NoError(t, err)
		assert.Equal(t, "DB-42", rec.InvoiceID)
		assert.Equal(t, "INV001", rec.InvoiceRef)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		f := newLinkFixture(t)

		_, err := f.service.Link(ctx, "missing", "")
		assert.ErrorIs(t, err, payment.ErrTransactionNotFound{})
		f.txRunner.AssertNotCalled(t, "ExecuteTx", mock.Anything)
	})

	t.Run("UnknownInvoiceRollsBack", func(t *testing.T) {
		f := newLinkFixture(t)
		f.txRunner.On("ExecuteTx", ctx).Return(nil).Once()
		f.records.On("WithTx", nil).Return(f.records).Once()
		f.records.On("GetByTransactionID", ctx, "tx-1").Return(nil, record.ErrRecordNotFound{TransactionID: "tx-1"}).Once()
		f.records.On("Upsert", ctx, mock.Anything).Return(nil).Once()
		f.invoices.On("WithTx", nil).Return(f.invoices).Once()
		f.invoices.On("LinkPayment", ctx, mock.Anything).Return(invoice.ErrInvoiceNotFound{InvoiceID: "INV001"}).Once()

		_, err := f.service.Link(ctx, "tx-1", "")
		assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound{})
		assert.False(t, f.txRunner.committed)
	})

	t.Run("RelinkKeepsRecordID", func(t *testing.T) {
		f := newLinkFixture(t)
		existing := &record.PaymentRecord{ID: uuid.New(), TransactionID: "tx-1", InvoiceID: "INV001"}
		f.txRunner.On("ExecuteTx", ctx).Return(nil).Once()
		f.records.On("WithTx", nil).Return(f.records).Once()
		f.records.On("GetByTransactionID", ctx, "tx-1").Return(existing, nil).Once()
		f.records.On("Upsert", ctx, mock.MatchedBy(func(rec *record.PaymentRecord) bool {
			return rec.ID == existing.ID && rec.InvoiceID == "DB-42"
		})).Return(nil).Once()
		f.invoices.On("WithTx", nil).Return(f.invoices).Once()
		f.invoices.On("LinkPayment", ctx, mock.Anything).Return(nil).Once()

		rec, err := f.service.Link(ctx, "tx-1", "DB-42")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, rec.ID)
		assert.Equal(t, "DB-42", rec.InvoiceID)
		assert.True(t, f.txRunner.committed)
		f.records.AssertExpectations(t)
	})

	t.Run("RecordLookupFailure", func(t *testing.T) {
		f := newLinkFixture(t)
		f.txRunner.On("ExecuteTx", ctx).Return(nil).Once()
		f.records.On("WithTx", nil).Return(f.records).Once()
		f.records.On("GetByTransactionID", ctx, "tx-1").Return(nil, errors.New("db error")).Once()

		_, err := f.service.Link(ctx, "tx-1", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load payment record")
		f.records.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		assert.False(t, f.txRunner.committed)
	})

	t.Run("UpsertFailure", func(t *testing.T) {
		f := newLinkFixture(t)
		f.txRunner.On("ExecuteTx", ctx).Return(nil).Once()
		f.records.On("WithTx", nil).Return(f.records).Once()
		f.records.On("GetByTransactionID", ctx, "tx-1").Return(nil, record.ErrRecordNotFound{TransactionID: "tx-1"}).Once()
		f.records.On("Upsert", ctx, mock.Anything).Return(errors.New("db error")).Once()

		_, err := f.service.Link(ctx, "tx-1", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert payment record")
		f.invoices.AssertNotCalled(t, "LinkPayment", mock.Anything, mock.Anything)
		assert.False(t, f.txRunner.committed)
	})
}
