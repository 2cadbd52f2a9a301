package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the immutable snapshot taken at checkout. Only status, delivery
// timestamps and admin notes change afterwards.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID            uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user_created"`
	Status            enums.OrderStatus     `gorm:"column:status;not null;default:'pending';index:idx_orders_status"`
	CustomerDetails   types.CustomerDetails `gorm:"column:customer_details;type:jsonb;serializer:json;not null"`
	PaymentMethod     enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	SubtotalCents     int64                 `gorm:"column:subtotal_cents;not null"`
	TaxCents          int64                 `gorm:"column:tax_cents;not null"`
	ShippingMethod    enums.ShippingMethod  `gorm:"column:shipping_method;not null"`
	ShippingCostCents int64                 `gorm:"column:shipping_cost_cents;not null"`
	DiscountCode      *string               `gorm:"column:discount_code"`
	DiscountCents     int64                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int64                 `gorm:"column:total_cents;not null"`
	EstimatedDelivery *time.Time            `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time            `gorm:"column:actual_delivery"`
	AdminNotes        *string               `gorm:"column:admin_notes"`
	CancelledAt       *time.Time            `gorm:"column:cancelled_at"`
	Items             []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime;index:idx_orders_user_created"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
