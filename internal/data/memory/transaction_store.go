// Package memory provides the process-local transaction store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/payment"
)

type entry struct {
	mu      sync.Mutex
	tx      *payment.Transaction
	removed bool
}

// TransactionStore keeps transactions in a map. The map lock guards membership
// and each entry has its own lock, so updates to different transactions never
// wait on each other.
type TransactionStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

var _ payment.Store = (*TransactionStore)(nil)

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{entries: make(map[string]*entry)}
}

func (s *TransactionStore) Create(_ context.Context, tx *payment.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[tx.ID]; exists {
		return payment.ErrDuplicateTransaction{ID: tx.ID}
	}
	s.entries[tx.ID] = &entry{tx: tx.Clone()}
	return nil
}

func (s *TransactionStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *TransactionStore) Get(_ context.Context, id string) (*payment.Transaction, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, payment.ErrTransactionNotFound{ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, payment.ErrTransactionNotFound{ID: id}
	}
	return e.tx.Clone(), nil
}

// Update runs fn on a working copy and swaps it in only when fn succeeds
func (s *TransactionStore) Update(_ context.Context, id string, fn func(tx *payment.Transaction) error) (*payment.Transaction, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, payment.ErrTransactionNotFound{ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, payment.ErrTransactionNotFound{ID: id}
	}

	working := e.tx.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	e.tx = working
	return working.Clone(), nil
}

func (s *TransactionStore) snapshot() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	return entries
}

func (s *TransactionStore) ListPending(_ context.Context) ([]*payment.Transaction, error) {
	pending := make([]*payment.Transaction, 0)
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if !e.removed && e.tx.IsPending() {
			pending = append(pending, e.tx.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *TransactionStore) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if !e.removed && e.tx.CompletedAt != nil && e.tx.CompletedAt.Before(cutoff) {
			ids = append(ids, e.tx.ID)
		}
		e.mu.Unlock()
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *TransactionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return payment.ErrTransactionNotFound{ID: id}
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	delete(s.entries, id)
	return nil
}
