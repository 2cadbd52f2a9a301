// Package pricing derives cart totals from line items, shipping and discount.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

const (
	DefaultTaxRate                    = "0.08"
	DefaultFreeShippingThresholdCents = int64(10000)
)

// Line is the pricing view of a cart line.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// Discount is the requested reduction. Percentage wins over AmountCents when set.
type Discount struct {
	Code        *string
	AmountCents int64
	Percentage  *decimal.Decimal
}

// Totals is the full derived money state of a cart.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	Shipping      Shipping
	DiscountCents int64
	TotalCents    int64
}

// Calculator computes totals with a fixed tax rate and free-shipping threshold.
type Calculator struct {
	taxRate                    decimal.Decimal
	freeShippingThresholdCents int64
}

func NewCalculator(taxRate decimal.Decimal, freeShippingThresholdCents int64) (*Calculator, error) {
	if taxRate.IsNegative() || taxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate %s out of range", taxRate.String())
	}
	if freeShippingThresholdCents < 0 {
		return nil, fmt.Errorf("free shipping threshold must not be negative")
	}
	return &Calculator{
		taxRate:                    taxRate,
		freeShippingThresholdCents: freeShippingThresholdCents,
	}, nil
}

// NewCalculatorFromConfig builds a calculator from cart settings.
func NewCalculatorFromConfig(cfg config.CartConfig) (*Calculator, error) {
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("parse tax rate: %w", err)
	}
	return NewCalculator(rate, cfg.FreeShippingThresholdCents)
}

// Default returns the calculator with the standard 8% tax and $100 threshold.
func Default() *Calculator {
	calc, err := NewCalculator(decimal.RequireFromString(DefaultTaxRate), DefaultFreeShippingThresholdCents)
	if err != nil {
		panic(err)
	}
	return calc
}

// Subtotal sums price times quantity over every line.
func Subtotal(lines []Line) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return subtotal
}

// Tax returns the rounded tax owed on subtotalCents.
func (c *Calculator) Tax(subtotalCents int64) int64 {
	return money.ApplyRate(subtotalCents, c.taxRate)
}

// Compute derives every total. It is pure and safe to call on each mutation.
func (c *Calculator) Compute(lines []Line, method enums.ShippingMethod, discount Discount) (Totals, error) {
	subtotal := Subtotal(lines)
	tax := c.Tax(subtotal)

	shipping, err := c.Shipping(method, subtotal, len(lines) > 0)
	if err != nil {
		return Totals{}, err
	}

	gross := subtotal + tax + shipping.CostCents
	discountCents := discountAmount(subtotal, gross, discount)

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		Shipping:      shipping,
		DiscountCents: discountCents,
		TotalCents:    gross - discountCents,
	}, nil
}

func discountAmount(subtotal, gross int64, discount Discount) int64 {
	amount := discount.AmountCents
	if discount.Percentage != nil {
		amount = money.Percent(subtotal, *discount.Percentage)
	}
	if amount < 0 {
		return 0
	}
	if amount > gross {
		return gross
	}
	return amount
}
