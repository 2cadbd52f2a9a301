package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem freezes a cart line at checkout.
type OrderItem struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	LineNumber         int       `gorm:"column:line_number;not null"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductTitle       string    `gorm:"column:product_title;not null"`
	SKU                string    `gorm:"column:sku;not null"`
	Size               string    `gorm:"column:size;not null"`
	Color              string    `gorm:"column:color;not null"`
	Quantity           int       `gorm:"column:quantity;not null"`
	UnitPriceCents     int64     `gorm:"column:unit_price_cents;not null"`
	OriginalPriceCents *int64    `gorm:"column:original_price_cents"`
	LineTotalCents     int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
