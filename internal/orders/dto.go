package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// OrderView is the API representation of a placed order.
type OrderView struct {
	ID                uuid.UUID             `json:"id"`
	OrderNumber       string                `json:"order_number"`
	UserID            uuid.UUID             `json:"user_id"`
	Status            enums.OrderStatus     `json:"status"`
	CustomerDetails   types.CustomerDetails `json:"customer_details"`
	PaymentMethod     enums.PaymentMethod   `json:"payment_method"`
	Items             []OrderItemView       `json:"items"`
	ItemCount         int                   `json:"item_count"`
	SubtotalCents     int64                 `json:"subtotal_cents"`
	TaxCents          int64                 `json:"tax_cents"`
	ShippingMethod    enums.ShippingMethod  `json:"shipping_method"`
	ShippingCostCents int64                 `json:"shipping_cost_cents"`
	DiscountCode      *string               `json:"discount_code,omitempty"`
	DiscountCents     int64                 `json:"discount_cents"`
	TotalCents        int64                 `json:"total_cents"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time            `json:"actual_delivery,omitempty"`
	AdminNotes        *string               `json:"admin_notes,omitempty"`
	CancelledAt       *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// OrderItemView is one frozen order line.
type OrderItemView struct {
	ProductID          uuid.UUID `json:"product_id"`
	ProductTitle       string    `json:"product_title"`
	SKU                string    `json:"sku"`
	Size               string    `json:"size"`
	Color              string    `json:"color"`
	Quantity           int       `json:"quantity"`
	UnitPriceCents     int64     `json:"unit_price_cents"`
	OriginalPriceCents *int64    `json:"original_price_cents,omitempty"`
	LineTotalCents     int64     `json:"line_total_cents"`
}

// NewOrderView maps a persisted order into its response shape.
func NewOrderView(order models.Order) OrderView {
	view := OrderView{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		UserID:            order.UserID,
		Status:            order.Status,
		CustomerDetails:   order.CustomerDetails,
		PaymentMethod:     order.PaymentMethod,
		Items:             make([]OrderItemView, 0, len(order.Items)),
		SubtotalCents:     order.SubtotalCents,
		TaxCents:          order.TaxCents,
		ShippingMethod:    order.ShippingMethod,
		ShippingCostCents: order.ShippingCostCents,
		DiscountCode:      order.DiscountCode,
		DiscountCents:     order.DiscountCents,
		TotalCents:        order.TotalCents,
		EstimatedDelivery: order.EstimatedDelivery,
		ActualDelivery:    order.ActualDelivery,
		AdminNotes:        order.AdminNotes,
		CancelledAt:       order.CancelledAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.ItemCount += item.Quantity
		view.Items = append(view.Items, OrderItemView{
			ProductID:          item.ProductID,
			ProductTitle:       item.ProductTitle,
			SKU:                item.SKU,
			Size:               item.Size,
			Color:              item.Color,
			Quantity:           item.Quantity,
			UnitPriceCents:     item.UnitPriceCents,
			OriginalPriceCents: item.OriginalPriceCents,
			LineTotalCents:     item.LineTotalCents,
		})
	}
	return view
}
