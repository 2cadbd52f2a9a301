package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestStandardShippingFreeShippingThreshold(t *testing.T) {
	calc := Default()

	below, err := calc.Compute([]Line{{UnitPriceCents: 9999, Quantity: 1}}, enums.ShippingStandard, Discount{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if below.Shipping.CostCents != 1000 {
		t.Fatalf("expected $10 shipping below threshold, got %d", below.Shipping.CostCents)
	}

	at, err := calc.Compute([]Line{{UnitPriceCents: 10000, Quantity: 1}}, enums.ShippingStandard, Discount{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if at.Shipping.CostCents != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", at.Shipping.CostCents)
	}
}

func TestPremiumShippingIsNeverWaived(t *testing.T) {
	calc := Default()
	lines := []Line{{UnitPriceCents: 50000, Quantity: 1}}
	for method, want := range map[enums.ShippingMethod]int64{
		enums.ShippingFree:      0,
		enums.ShippingExpress:   2500,
		enums.ShippingOvernight: 4500,
	} {
		totals, err := calc.Compute(lines, method, Discount{})
		if err != nil {
			t.Fatalf("compute %s: %v", method, err)
		}
		if totals.Shipping.CostCents != want {
			t.Fatalf("%s: expected %d got %d", method, want, totals.Shipping.CostCents)
		}
	}
}

func TestComputeTotalsIdentity(t *testing.T) {
	calc := Default()
	pct := decimal.NewFromInt(10)
	lines := []Line{
		{UnitPriceCents: 2999, Quantity: 2},
		{UnitPriceCents: 1550, Quantity: 3},
	}

	totals, err := calc.Compute(lines, enums.ShippingExpress, Discount{Percentage: &pct})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if totals.SubtotalCents != 2999*2+1550*3 {
		t.Fatalf("unexpected subtotal %d", totals.SubtotalCents)
	}
	// 10648 * 0.08 = 851.84
	if totals.TaxCents != 852 {
		t.Fatalf("unexpected tax %d", totals.TaxCents)
	}
	// 10% of 10648 = 1064.8
	if totals.DiscountCents != 1065 {
		t.Fatalf("unexpected discount %d", totals.DiscountCents)
	}
	want := totals.SubtotalCents + totals.TaxCents + totals.Shipping.CostCents - totals.DiscountCents
	if totals.TotalCents != want {
		t.Fatalf("total %d does not match identity %d", totals.TotalCents, want)
	}
}

func TestFixedDiscountIsClampedToGross(t *testing.T) {
	calc := Default()
	totals, err := calc.Compute([]Line{{UnitPriceCents: 500, Quantity: 1}}, enums.ShippingStandard, Discount{AmountCents: 99999})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if totals.TotalCents != 0 {
		t.Fatalf("expected total clamped to zero, got %d", totals.TotalCents)
	}
	if totals.DiscountCents != 500+40+1000 {
		t.Fatalf("unexpected clamped discount %d", totals.DiscountCents)
	}
}

func TestEmptyCartHasZeroTotals(t *testing.T) {
	totals, err := Default().Compute(nil, enums.ShippingOvernight, Discount{AmountCents: 500})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if totals != (Totals{Shipping: Shipping{Method: enums.ShippingOvernight, EstimatedDays: 1}}) {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestUnknownShippingMethod(t *testing.T) {
	if _, err := Default().Compute(nil, enums.ShippingMethod("teleport"), Discount{}); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestNewCalculatorFromConfig(t *testing.T) {
	calc, err := NewCalculatorFromConfig(config.CartConfig{TaxRate: "0.10", FreeShippingThresholdCents: 5000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calc.Tax(1000) != 100 {
		t.Fatalf("expected 10%% tax")
	}
	if _, err := NewCalculatorFromConfig(config.CartConfig{TaxRate: "abc"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewCalculatorFromConfig(config.CartConfig{TaxRate: "1.5"}); err == nil {
		t.Fatal("expected range error")
	}
}
