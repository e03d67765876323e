package reconcile

import (
	"context"
	"sync"
)

// InMemoryPaymentStore keeps payment ledger rows in memory, grouped by event.
type InMemoryPaymentStore struct {
	mu   sync.RWMutex
	rows map[string][]LedgerRow
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{rows: make(map[string][]LedgerRow)}
}

// Add appends a ledger row for an event.
func (s *InMemoryPaymentStore) Add(eventID string, row LedgerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[eventID] = append(s.rows[eventID], row)
}

func (s *InMemoryPaymentStore) ListByEvent(_ context.Context, eventID string) ([]LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LedgerRow, len(s.rows[eventID]))
	copy(out, s.rows[eventID])
	return out, nil
}

var _ PaymentStore = (*InMemoryPaymentStore)(nil)
