package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is a catalog listing with its size/color stock matrix.
type Product struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SKU                 string            `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Title               string            `gorm:"column:title;not null"`
	Description         *string           `gorm:"column:description"`
	Category            string            `gorm:"column:category;not null;index:idx_products_category"`
	Tags                pq.StringArray    `gorm:"column:tags;type:text[]"`
	PriceCents          int64             `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64            `gorm:"column:compare_at_price_cents"`
	IsActive            bool              `gorm:"column:is_active;not null;default:true"`
	Inventory           []InventoryRecord `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
