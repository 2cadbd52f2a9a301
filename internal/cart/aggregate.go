// Package cart owns the per-user cart aggregate, its persistence and the
// reservation-aware mutation service.
package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var maxDiscountPercentage = decimal.NewFromInt(100)

// Aggregate applies in-memory mutations to a loaded cart. Every mutating method
// recalculates totals before returning, so a persisted cart is never stale.
type Aggregate struct {
	cart *models.Cart
	calc *pricing.Calculator
}

func NewAggregate(cart *models.Cart, calc *pricing.Calculator) *Aggregate {
	if calc == nil {
		calc = pricing.Default()
	}
	if cart.ShippingMethod == "" {
		cart.ShippingMethod = enums.DefaultShippingMethod
	}
	return &Aggregate{cart: cart, calc: calc}
}

// Cart returns the underlying model.
func (a *Aggregate) Cart() *models.Cart {
	return a.cart
}

// Line returns the line matching the variant exactly.
func (a *Aggregate) Line(v inventory.Variant) (models.CartItem, bool) {
	if idx := a.index(v); idx >= 0 {
		return a.cart.Items[idx], true
	}
	return models.CartItem{}, false
}

// AddItem merges item onto the line with the same product, size and color or
// appends it. A merged line keeps its original price snapshot.
func (a *Aggregate) AddItem(item models.CartItem) error {
	if item.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	v := inventory.Variant{ProductID: item.ProductID, Size: item.Size, Color: item.Color}
	if idx := a.index(v); idx >= 0 {
		a.cart.Items[idx].Quantity += item.Quantity
		return a.Recalculate()
	}
	item.CartID = a.cart.ID
	a.cart.Items = append(a.cart.Items, item)
	return a.Recalculate()
}

// SetItemQuantity sets an existing line's quantity, removing it when qty <= 0.
// It returns the quantity held before the change.
func (a *Aggregate) SetItemQuantity(v inventory.Variant, qty int) (int, error) {
	idx := a.index(v)
	if idx < 0 {
		return 0, itemNotFound(v)
	}
	previous := a.cart.Items[idx].Quantity
	if qty <= 0 {
		a.removeAt(idx)
	} else {
		a.cart.Items[idx].Quantity = qty
	}
	return previous, a.Recalculate()
}

// RemoveItem deletes the line matching the variant.
func (a *Aggregate) RemoveItem(v inventory.Variant) (models.CartItem, error) {
	idx := a.index(v)
	if idx < 0 {
		return models.CartItem{}, itemNotFound(v)
	}
	removed := a.removeAt(idx)
	return removed, a.Recalculate()
}

// RemoveItemByID deletes the line with the given id.
func (a *Aggregate) RemoveItemByID(id uuid.UUID) (models.CartItem, error) {
	for idx := range a.cart.Items {
		if a.cart.Items[idx].ID == id {
			removed := a.removeAt(idx)
			return removed, a.Recalculate()
		}
	}
	return models.CartItem{}, pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found").
		WithDetails(map[string]any{"item_id": id.String()})
}

// Clear empties the cart and drops the discount. It returns the removed lines.
func (a *Aggregate) Clear() ([]models.CartItem, error) {
	removed := a.cart.Items
	a.cart.Items = nil
	a.clearDiscount()
	return removed, a.Recalculate()
}

// ApplyDiscount sets the discount code with exactly one of a fixed amount or a
// percentage in (0, 100].
func (a *Aggregate) ApplyDiscount(code string, amountCents *int64, percentage *decimal.Decimal) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	if (amountCents == nil) == (percentage == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of amount or percentage is required")
	}
	if amountCents != nil && *amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount amount must be positive")
	}
	if percentage != nil && (!percentage.IsPositive() || percentage.GreaterThan(maxDiscountPercentage)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount percentage must be within (0, 100]")
	}
	// stored as numeric(5,2)
	if percentage != nil && !percentage.Equal(percentage.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount percentage allows at most two decimal places").
			WithDetails(map[string]any{"percentage": percentage.String()})
	}

	a.clearDiscount()
	a.cart.DiscountCode = &code
	if amountCents != nil {
		amount := *amountCents
		a.cart.DiscountFixedCents = &amount
	} else {
		a.cart.DiscountPercentage = decimal.NewNullDecimal(*percentage)
	}
	return a.Recalculate()
}

// RemoveDiscount clears any discount.
func (a *Aggregate) RemoveDiscount() error {
	a.clearDiscount()
	return a.Recalculate()
}

// SetShippingMethod switches the method and reprices shipping.
func (a *Aggregate) SetShippingMethod(method enums.ShippingMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method").
			WithDetails(map[string]any{"shipping_method": string(method)})
	}
	a.cart.ShippingMethod = method
	return a.Recalculate()
}

// Recalculate rewrites every derived money field as a unit.
func (a *Aggregate) Recalculate() error {
	lines := make([]pricing.Line, 0, len(a.cart.Items))
	for _, item := range a.cart.Items {
		lines = append(lines, pricing.Line{UnitPriceCents: item.UnitPriceCents, Quantity: item.Quantity})
	}
	totals, err := a.calc.Compute(lines, a.cart.ShippingMethod, a.discount())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price cart")
	}
	a.cart.SubtotalCents = totals.SubtotalCents
	a.cart.TaxCents = totals.TaxCents
	a.cart.ShippingCostCents = totals.Shipping.CostCents
	a.cart.ShippingEstimatedDays = totals.Shipping.EstimatedDays
	a.cart.DiscountAmountCents = totals.DiscountCents
	a.cart.TotalCents = totals.TotalCents
	return nil
}

// Touch marks the cart active and pushes its expiry to now+ttl.
func (a *Aggregate) Touch(now time.Time, ttl time.Duration) {
	a.cart.IsActive = true
	a.cart.ExpiresAt = now.UTC().Add(ttl)
}

// ItemCount sums quantity over all lines.
func (a *Aggregate) ItemCount() int {
	count := 0
	for _, item := range a.cart.Items {
		count += item.Quantity
	}
	return count
}

func (a *Aggregate) discount() pricing.Discount {
	d := pricing.Discount{Code: a.cart.DiscountCode}
	if a.cart.DiscountPercentage.Valid {
		pct := a.cart.DiscountPercentage.Decimal
		d.Percentage = &pct
	} else if a.cart.DiscountFixedCents != nil {
		d.AmountCents = *a.cart.DiscountFixedCents
	}
	return d
}

func (a *Aggregate) clearDiscount() {
	a.cart.DiscountCode = nil
	a.cart.DiscountFixedCents = nil
	a.cart.DiscountPercentage = decimal.NullDecimal{}
	a.cart.DiscountAmountCents = 0
}

func (a *Aggregate) index(v inventory.Variant) int {
	for idx, item := range a.cart.Items {
		if item.ProductID == v.ProductID && item.Size == v.Size && item.Color == v.Color {
			return idx
		}
	}
	return -1
}

func (a *Aggregate) removeAt(idx int) models.CartItem {
	removed := a.cart.Items[idx]
	a.cart.Items = append(a.cart.Items[:idx:idx], a.cart.Items[idx+1:]...)
	return removed
}

func itemNotFound(v inventory.Variant) error {
	return pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found").WithDetails(map[string]any{
		"product_id": v.ProductID.String(),
		"size":       v.Size,
		"color":      v.Color,
	})
}

func variantOf(item models.CartItem) inventory.Variant {
	return inventory.Variant{ProductID: item.ProductID, Size: item.Size, Color: item.Color}
}
