package inventory

import (
	"context"
	"sync"

	"github.com/ariefcatur/def-order-backend/internal/orders"
)

type stockKey struct {
	location    string
	productType string
}

// MemoryLedger is an in-process ledger with the same idempotency contract as
// LedgerRepo. It backs tests and local runs without a database.
type MemoryLedger struct {
	mu      sync.Mutex
	stock   map[stockKey]int
	applied map[string]orders.Deduction
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		stock:   make(map[stockKey]int),
		applied: make(map[string]orders.Deduction),
	}
}

func (m *MemoryLedger) Restock(_ context.Context, location, productType string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[stockKey{location, productType}] = quantity
	return nil
}

func (m *MemoryLedger) Available(_ context.Context, location, productType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[stockKey{location, productType}], nil
}

func (m *MemoryLedger) Deducted(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.applied[orderID]
	return ok, nil
}

func (m *MemoryLedger) Deduct(_ context.Context, d orders.Deduction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applied[d.OrderID]; ok {
		return true, nil
	}
	k := stockKey{d.Location, d.ProductType}
	if m.stock[k] < d.Quantity {
		return false, nil
	}
	m.stock[k] -= d.Quantity
	m.applied[d.OrderID] = d
	return true, nil
}
