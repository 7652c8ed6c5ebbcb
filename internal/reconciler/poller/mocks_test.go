package poller

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway mocks payment.Gateway
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

// MockNotifier mocks Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Exchange(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload, errMessage string) {
	m.Called(ctx, tx, op, payload, errMessage)
}

func (m *MockNotifier) Finalized(ctx context.Context, tx *payment.Transaction, op shared.ExchangeOperation, payload string) {
	m.Called(ctx, tx, op, payload)
}

// MockExchangeRepo mocks audit.Repository
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

// MockPublisher mocks producers.MessagePublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockScheduler mocks PollScheduler
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newPendingTransaction(t *testing.T, id string) *payment.Transaction {
	t.Helper()
	cmd, err := payment.ParseCommand("V|DEV_TERM_001|10000|INV001")
	require.NoError(t, err)
	return payment.NewTransaction(id, cmd, "AUTH_DEVICE", "REQ-"+id, "test", time.Now().UTC())
}
