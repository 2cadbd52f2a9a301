package cartdto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineRequest identifies a cart line by its variant.
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"required,max=32"`
	Color     string    `json:"color" validate:"required,max=32"`
}

type AddItemRequest struct {
	LineRequest
	Quantity int `json:"quantity" validate:"gt=0,lte=999"`
}

// UpdateItemRequest sets a line's quantity. Zero removes the line.
type UpdateItemRequest struct {
	LineRequest
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

type RemoveItemRequest struct {
	LineRequest
}

type DiscountRequest struct {
	Code        string           `json:"code" validate:"required,max=64"`
	AmountCents *int64           `json:"amount_cents,omitempty" validate:"omitempty,gte=0"`
	Percentage  *decimal.Decimal `json:"percentage,omitempty"`
}

type ShippingRequest struct {
	Method string `json:"method" validate:"required,shipping_method"`
}
