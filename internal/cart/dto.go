package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CartView is the API and cache representation of a cart.
type CartView struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	Items         []CartItemView `json:"items"`
	ItemCount     int            `json:"item_count"`
	SubtotalCents int64          `json:"subtotal_cents"`
	TaxCents      int64          `json:"tax_cents"`
	Shipping      ShippingView   `json:"shipping"`
	Discount      *DiscountView  `json:"discount,omitempty"`
	TotalCents    int64          `json:"total_cents"`
	ExpiresAt     time.Time      `json:"expires_at"`
	IsActive      bool           `json:"is_active"`
	Version       int64          `json:"version"`
}

// CartItemView is a single cart line.
type CartItemView struct {
	ID                 uuid.UUID `json:"id"`
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

type ShippingView struct {
	Method        enums.ShippingMethod `json:"method"`
	CostCents     int64                `json:"cost_cents"`
	EstimatedDays int                  `json:"estimated_days"`
}

type DiscountView struct {
	Code        string  `json:"code"`
	AmountCents int64   `json:"amount_cents"`
	Percentage  *string `json:"percentage,omitempty"`
}

// NewCartView maps the persisted cart into its response shape.
func NewCartView(cart *models.Cart) *CartView {
	view := &CartView{
		ID:            cart.ID,
		UserID:        cart.UserID,
		Items:         make([]CartItemView, 0, len(cart.Items)),
		SubtotalCents: cart.SubtotalCents,
		TaxCents:      cart.TaxCents,
		Shipping: ShippingView{
			Method:        cart.ShippingMethod,
			CostCents:     cart.ShippingCostCents,
			EstimatedDays: cart.ShippingEstimatedDays,
		},
		TotalCents: cart.TotalCents,
		ExpiresAt:  cart.ExpiresAt,
		IsActive:   cart.IsActive,
		Version:    cart.Version,
	}
	for _, item := range cart.Items {
		view.ItemCount += item.Quantity
		view.Items = append(view.Items, CartItemView{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			ProductTitle:       item.ProductTitle,
			SKU:                item.SKU,
			Size:               item.Size,
			Color:              item.Color,
			Quantity:           item.Quantity,
			UnitPriceCents:     item.UnitPriceCents,
			OriginalPriceCents: item.OriginalPriceCents,
			LineTotalCents:     item.UnitPriceCents * int64(item.Quantity),
		})
	}
	if cart.DiscountCode != nil {
		discount := &DiscountView{Code: *cart.DiscountCode, AmountCents: cart.DiscountAmountCents}
		if cart.DiscountPercentage.Valid {
			pct := cart.DiscountPercentage.Decimal.String()
			discount.Percentage = &pct
		}
		view.Discount = discount
	}
	return view
}
