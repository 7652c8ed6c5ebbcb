package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/invoice"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/record"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, tx *payment.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, id string) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id string, fn func(tx *payment.Transaction) error) (*payment.Transaction, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockStore) ListPending(ctx context.Context) ([]*payment.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Transaction), args.Error(1)
}

func (m *MockStore) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) AddRequest(ctx context.Context, in payment.AddRequestInput) (*payment.AddRequestOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.AddRequestOutput), args.Error(1)
}

func (m *MockGateway) CheckRequest(ctx context.Context, deviceID, requestID string) (*payment.CheckRequestOutput, error) {
	args := m.Called(ctx, deviceID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckRequestOutput), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockScheduler) Cancel(id string) bool {
	args := m.Called(id)
	return args.Bool(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Exchange(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload, errMessage string) {
	m.Called(ctx, tx, op, payload, errMessage)
}

func (m *MockNotifier) Finalized(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload string) {
	m.Called(ctx, tx, op, payload)
}

type MockExchangeRepo struct {
	mock.Mock
}

func (m *MockExchangeRepo) Record(ctx context.Context, exchange *audit.Exchange) error {
	args := m.Called(ctx, exchange)
	return args.Error(0)
}

func (m *MockExchangeRepo) ListByTransactionID(ctx context.Context, transactionID string) ([]*audit.Exchange, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Exchange), args.Error(1)
}

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Upsert(ctx context.Context, rec *record.PaymentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByTransactionID(ctx context.Context, transactionID string) (*record.PaymentRecord, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.PaymentRecord), args.Error(1)
}

func (m *MockRecordRepository) WithTx(tx pgx.Tx) record.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(record.Repository)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) LinkPayment(ctx context.Context, link invoice.PaymentLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockInvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(invoice.Repository)
}

// MockTxRunner runs fn with a nil transaction and reports whether it would have committed
type MockTxRunner struct {
	mock.Mock
	committed bool
}

func (m *MockTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	if err := fn(nil); err != nil {
		return err
	}
	m.committed = true
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
