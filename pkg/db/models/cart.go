package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Cart is the persisted per-user cart aggregate. Version guards every write.
// DiscountFixedCents is the requested fixed discount; DiscountAmountCents is
// the clamped amount actually applied to the total.
type Cart struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID            `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_carts_user_id"`
	SubtotalCents         int64                `gorm:"column:subtotal_cents;not null;default:0"`
	TaxCents              int64                `gorm:"column:tax_cents;not null;default:0"`
	ShippingMethod        enums.ShippingMethod `gorm:"column:shipping_method;not null;default:'standard'"`
	ShippingCostCents     int64                `gorm:"column:shipping_cost_cents;not null;default:0"`
	ShippingEstimatedDays int                  `gorm:"column:shipping_estimated_days;not null;default:0"`
	DiscountCode          *string              `gorm:"column:discount_code"`
	DiscountFixedCents    *int64               `gorm:"column:discount_fixed_cents"`
	DiscountAmountCents   int64                `gorm:"column:discount_amount_cents;not null;default:0"`
	DiscountPercentage    decimal.NullDecimal  `gorm:"column:discount_percentage;type:numeric(5,2)"`
	TotalCents            int64                `gorm:"column:total_cents;not null;default:0"`
	ExpiresAt             time.Time            `gorm:"column:expires_at;not null;index:idx_carts_expiry"`
	IsActive              bool                 `gorm:"column:is_active;not null;default:true"`
	Version               int64                `gorm:"column:version;not null;default:1"`
	Items                 []CartItem           `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
