package pricing

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type shippingRate struct {
	costCents     int64
	estimatedDays int
	// waivable rates drop to zero once the subtotal reaches the free-shipping threshold
	waivable bool
}

var shippingRates = map[enums.ShippingMethod]shippingRate{
	enums.ShippingFree:      {costCents: 0, estimatedDays: 7},
	enums.ShippingStandard:  {costCents: 1000, estimatedDays: 5, waivable: true},
	enums.ShippingExpress:   {costCents: 2500, estimatedDays: 2},
	enums.ShippingOvernight: {costCents: 4500, estimatedDays: 1},
}

// Shipping is the resolved shipping line of a cart or order.
type Shipping struct {
	Method        enums.ShippingMethod
	CostCents     int64
	EstimatedDays int
}

// Shipping resolves the cost of method for the given subtotal. Carts without
// items never pay for shipping.
func (c *Calculator) Shipping(method enums.ShippingMethod, subtotalCents int64, hasItems bool) (Shipping, error) {
	rate, ok := shippingRates[method]
	if !ok {
		return Shipping{}, fmt.Errorf("unknown shipping method %q", method)
	}
	cost := rate.costCents
	if !hasItems || (rate.waivable && subtotalCents >= c.freeShippingThresholdCents) {
		cost = 0
	}
	return Shipping{
		Method:        method,
		CostCents:     cost,
		EstimatedDays: rate.estimatedDays,
	}, nil
}
