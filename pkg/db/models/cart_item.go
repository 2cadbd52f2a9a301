package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one line of a cart. UnitPriceCents is captured when the line is
// first added and never re-read from the catalog.
type CartItem struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID             uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_line"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_line"`
	Size               string    `gorm:"column:size;not null;uniqueIndex:ux_cart_items_line"`
	Color              string    `gorm:"column:color;not null;uniqueIndex:ux_cart_items_line"`
	ProductTitle       string    `gorm:"column:product_title;not null"`
	SKU                string    `gorm:"column:sku;not null"`
	Quantity           int       `gorm:"column:quantity;not null"`
	UnitPriceCents     int64     `gorm:"column:unit_price_cents;not null"`
	OriginalPriceCents *int64    `gorm:"column:original_price_cents"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
