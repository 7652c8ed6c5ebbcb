package service

import (
	"context"

	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
)

// StatusServiceImpl implements the StatusService interface
type StatusServiceImpl struct {
	store     payment.Store
	exchanges audit.Repository
}

// NewStatusService creates a new status service
func NewStatusService(store payment.Store, exchanges audit.Repository) StatusService {
	return &StatusServiceImpl{
		store:     store,
		exchanges: exchanges,
	}
}

// GetTransaction returns a snapshot of the transaction, ErrTransactionNotFound if unknown
func (s *StatusServiceImpl) GetTransaction(ctx context.Context, id string) (*payment.Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListPending returns every PENDING transaction, oldest first
func (s *StatusServiceImpl) ListPending(ctx context.Context) ([]*payment.Transaction, error) {
	return s.store.ListPending(ctx)
}

// ListExchanges returns the gateway audit trail of a known transaction
func (s *StatusServiceImpl) ListExchanges(ctx context.Context, id string) ([]*audit.Exchange, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.exchanges.ListByTransactionID(ctx, id)
}
