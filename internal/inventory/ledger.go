// Package inventory owns per-variant stock: on-hand quantity and the portion
// reserved against carts.
package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Variant identifies one stock record. Size and color match exactly; no case
// or whitespace normalization is applied.
type Variant struct {
	ProductID uuid.UUID
	Size      string
	Color     string
}

// Ledger mutates stock with single conditional statements so concurrent
// callers can never drive reserved above quantity.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Reserve(ctx context.Context, v Variant, qty int) error
	Release(ctx context.Context, v Variant, qty int) error
	Consume(ctx context.Context, v Variant, qty int) error
	Restock(ctx context.Context, v Variant, qty int) error
}

// Find returns the record matching size and color.
func Find(records []models.InventoryRecord, size, color string) (models.InventoryRecord, bool) {
	for _, record := range records {
		if record.Size == size && record.Color == color {
			return record, true
		}
	}
	return models.InventoryRecord{}, false
}

// Available returns quantity minus reserved for a record, never negative.
func Available(record models.InventoryRecord) int {
	if record.Reserved >= record.Quantity {
		return 0
	}
	return record.Quantity - record.Reserved
}

// IsAvailable reports whether at least one unit of the variant is unreserved.
func IsAvailable(records []models.InventoryRecord, size, color string) bool {
	record, ok := Find(records, size, color)
	return ok && record.Quantity > record.Reserved
}

// TotalStock sums on-hand quantity across all variants.
func TotalStock(records []models.InventoryRecord) int {
	total := 0
	for _, record := range records {
		total += record.Quantity
	}
	return total
}

// AvailableStock sums unreserved quantity across all variants.
func AvailableStock(records []models.InventoryRecord) int {
	total := 0
	for _, record := range records {
		total += Available(record)
	}
	return total
}
