package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRecord holds on-hand and reserved units for one product variant.
type InventoryRecord struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_records_variant"`
	Size      string    `gorm:"column:size;not null;uniqueIndex:ux_inventory_records_variant"`
	Color     string    `gorm:"column:color;not null;uniqueIndex:ux_inventory_records_variant"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Reserved  int       `gorm:"column:reserved;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
