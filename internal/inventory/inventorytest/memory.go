// Package inventorytest provides an in-memory inventory.Ledger for service tests.
package inventorytest

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
)

type stock struct {
	quantity int
	reserved int
}

// Memory is a mutex-guarded Ledger. Transactions are ignored, so callers that
// roll back must not rely on Memory undoing earlier calls.
type Memory struct {
	mu    sync.Mutex
	stock map[inventory.Variant]*stock
}

func NewMemory() *Memory {
	return &Memory{stock: map[inventory.Variant]*stock{}}
}

// Set seeds a variant with on-hand quantity and no reservations.
func (m *Memory) Set(v inventory.Variant, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[v] = &stock{quantity: quantity}
}

// Levels returns the current quantity and reserved counts for v.
func (m *Memory) Levels(v inventory.Variant) (quantity, reserved int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[v]
	if !ok {
		return 0, 0
	}
	return s.quantity, s.reserved
}

func (m *Memory) WithTx(*gorm.DB) inventory.Ledger { return m }

func (m *Memory) Reserve(_ context.Context, v inventory.Variant, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[v]
	if !ok || s.quantity-s.reserved < qty {
		return inventory.InsufficientStock(v, qty)
	}
	s.reserved += qty
	return nil
}

func (m *Memory) Release(_ context.Context, v inventory.Variant, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stock[v]; ok {
		s.reserved -= qty
		if s.reserved < 0 {
			s.reserved = 0
		}
	}
	return nil
}

func (m *Memory) Consume(_ context.Context, v inventory.Variant, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[v]
	if !ok || s.reserved < qty {
		return inventory.InsufficientStock(v, qty)
	}
	s.quantity -= qty
	s.reserved -= qty
	return nil
}

func (m *Memory) Restock(_ context.Context, v inventory.Variant, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stock[v]; ok {
		s.quantity += qty
	}
	return nil
}
