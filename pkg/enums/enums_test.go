package enums

import "testing"

func TestParseShippingMethod(t *testing.T) {
	for _, raw := range []string{"free", "standard", "express", "overnight"} {
		got, err := ParseShippingMethod(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got.String() != raw {
			t.Fatalf("expected %q got %q", raw, got)
		}
	}
	if _, err := ParseShippingMethod("Standard"); err == nil {
		t.Fatal("shipping methods are case sensitive")
	}
	if ShippingMethod("drone").IsValid() {
		t.Fatal("unexpected valid method")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:    false,
		OrderStatusConfirmed:  false,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Fatalf("%s terminal=%v want %v", status, status.IsTerminal(), want)
		}
		if !status.IsValid() {
			t.Fatalf("%s should be valid", status)
		}
	}
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParsePaymentMethodAndRole(t *testing.T) {
	if _, err := ParsePaymentMethod("cash_on_delivery"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParsePaymentMethod("barter"); err == nil {
		t.Fatal("expected error for unknown payment method")
	}
	if role, err := ParseUserRole("admin"); err != nil || role != UserRoleAdmin {
		t.Fatalf("unexpected role parse result %q %v", role, err)
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventOrderCreated.IsValid() || !AggregateCart.IsValid() {
		t.Fatal("expected canonical outbox values to be valid")
	}
	if _, err := ParseOutboxEventType("order_exploded"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if EventCartExpired.Aggregate() != AggregateCart || EventOrderStatusChanged.Aggregate() != AggregateOrder {
		t.Fatal("unexpected aggregate mapping")
	}
	if OutboxEventType("mystery").Aggregate() != "" {
		t.Fatal("unknown events have no aggregate")
	}
}

func TestDLQReasonReplayable(t *testing.T) {
	cases := map[OutboxDLQErrorReason]bool{
		OutboxDLQReasonMaxAttempts:  true,
		OutboxDLQReasonUnroutable:   true,
		OutboxDLQReasonNonRetryable: false,
	}
	for reason, want := range cases {
		if !reason.IsValid() {
			t.Fatalf("%s should be valid", reason)
		}
		if reason.Replayable() != want {
			t.Fatalf("%s replayable=%v want %v", reason, reason.Replayable(), want)
		}
	}
}

func TestParseErrorNamesKind(t *testing.T) {
	_, err := ParseUserRole("root")
	if err == nil || err.Error() != `invalid user role "root"` {
		t.Fatalf("unexpected error %v", err)
	}
}
