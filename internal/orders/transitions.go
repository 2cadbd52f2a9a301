package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// EstimatedDeliveryWindow is added to the ship time to estimate arrival.
const EstimatedDeliveryWindow = 6 * 24 * time.Hour

var forwardTransitions = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusConfirmed,
	enums.OrderStatusConfirmed:  enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

// CanTransition reports whether an order in from may move to to. Orders only
// advance one step at a time, and any non-terminal order may be cancelled.
func CanTransition(from, to enums.OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() || from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	return forwardTransitions[from] == to
}

// ApplyTransition moves order to the target status and stamps the timestamps
// that belong to it.
func ApplyTransition(order *models.Order, to enums.OrderStatus, now time.Time) error {
	from := order.Status
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition not allowed").
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}

	now = now.UTC()
	order.Status = to
	switch to {
	case enums.OrderStatusShipped:
		eta := now.Add(EstimatedDeliveryWindow)
		order.EstimatedDelivery = &eta
	case enums.OrderStatusDelivered:
		order.ActualDelivery = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
	return nil
}
