// Package checkout turns a user's cart into an immutable order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/cache"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	defaultMaxAttempts    = 3
	defaultCartExpiry     = 30 * 24 * time.Hour
	defaultCacheTTL       = 5 * time.Minute
	orderNumberConstraint = "ux_orders_order_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlaceOrderInput is what the customer submits at checkout.
type PlaceOrderInput struct {
	CustomerDetails types.CustomerDetails
	PaymentMethod   enums.PaymentMethod
}

// Service executes checkout orchestration.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderView, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Tx          txRunner
	Carts       cart.CartRepository
	Orders      orders.Repository
	Ledger      inventory.Ledger
	Outbox      outbox.Emitter
	Calculator  *pricing.Calculator
	Cache       cache.Cache
	CacheTTL    time.Duration
	Metrics     *metrics.CommerceMetrics
	Logger      *logger.Logger
	CartExpiry  time.Duration
	MaxAttempts int
}

type service struct {
	tx          txRunner
	carts       cart.CartRepository
	orders      orders.Repository
	ledger      inventory.Ledger
	outbox      outbox.Emitter
	calc        *pricing.Calculator
	cache       cache.Cache
	cacheTTL    time.Duration
	metrics     *metrics.CommerceMetrics
	logg        *logger.Logger
	cartExpiry  time.Duration
	maxAttempts int
	now         func() time.Time
	entropy     io.Reader
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	calc := params.Calculator
	if calc == nil {
		calc = pricing.Default()
	}
	c := params.Cache
	if c == nil {
		c = cache.Noop{}
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	expiry := params.CartExpiry
	if expiry <= 0 {
		expiry = defaultCartExpiry
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &service{
		tx:          params.Tx,
		carts:       params.Carts,
		orders:      params.Orders,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		calc:        calc,
		cache:       c,
		cacheTTL:    ttl,
		metrics:     params.Metrics,
		logg:        params.Logger,
		cartExpiry:  expiry,
		maxAttempts: attempts,
		now:         time.Now,
	}, nil
}

// PlaceOrder consumes the cart's reservations, freezes its lines and totals into
// an order, empties the cart and queues order_created in one transaction.
// Concurrent cart writes and order number collisions restart the attempt.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	var (
		order   *models.Order
		cleared *models.Cart
		err     error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		order, cleared, err = s.placeOnce(ctx, userID, input)
		if err == nil {
			break
		}
		if !retryable(err) {
			return nil, err
		}
		s.metrics.VersionConflict("place_order")
		logCtx := s.logg.WithFields(ctx, map[string]any{"attempt": attempt})
		s.logg.Warn(logCtx, "order placement conflict")
	}
	if err != nil {
		return nil, err
	}

	cache.Store(ctx, s.cache, s.logg, cache.CartKey(userID), s.cacheTTL, cleared.Version, cart.NewCartView(cleared))
	s.metrics.OrderPlaced(string(order.PaymentMethod))
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
	})
	s.logg.Info(logCtx, "order placed")

	view := orders.NewOrderView(*order)
	return &view, nil
}

// placeOnce returns the new order and the emptied cart it was taken from.
func (s *service) placeOnce(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*models.Order, *models.Cart, error) {
	var (
		placed  *models.Order
		cleared *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		current, err := carts.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := validateOrder(current, input.CustomerDetails, input.PaymentMethod); err != nil {
			return err
		}

		now := s.now().UTC()
		number, err := NewOrderNumber(now, s.entropy)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		ledger := s.ledger.WithTx(tx)
		for _, item := range current.Items {
			v := inventory.Variant{ProductID: item.ProductID, Size: item.Size, Color: item.Color}
			if err := ledger.Consume(ctx, v, item.Quantity); err != nil {
				return err
			}
		}

		order := snapshot(current, userID, number, input)
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, orderNumberConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeVersionConflict, err, "order number collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		// reservations were consumed above, so the lines are dropped without release
		expected := current.Version
		agg := cart.NewAggregate(current, s.calc)
		if _, err := agg.Clear(); err != nil {
			return err
		}
		agg.Touch(now, s.cartExpiry)
		if err := carts.Save(ctx, current, expected); err != nil {
			return err
		}

		placed, cleared = order, current
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: outbox.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        userID,
				PaymentMethod: order.PaymentMethod,
				ItemCount:     itemCount(order.Items),
				TotalCents:    order.TotalCents,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return placed, cleared, nil
}

// snapshot copies the cart's lines and totals into a new pending order.
func snapshot(c *models.Cart, userID uuid.UUID, number string, input PlaceOrderInput) *models.Order {
	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       number,
		UserID:            userID,
		Status:            enums.OrderStatusPending,
		CustomerDetails:   input.CustomerDetails,
		PaymentMethod:     input.PaymentMethod,
		SubtotalCents:     c.SubtotalCents,
		TaxCents:          c.TaxCents,
		ShippingMethod:    c.ShippingMethod,
		ShippingCostCents: c.ShippingCostCents,
		DiscountCents:     c.DiscountAmountCents,
		TotalCents:        c.TotalCents,
		Items:             make([]models.OrderItem, 0, len(c.Items)),
	}
	if c.DiscountCode != nil {
		code := *c.DiscountCode
		order.DiscountCode = &code
	}
	for idx, item := range c.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:            order.ID,
			LineNumber:         idx + 1,
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
	return order
}

func itemCount(items []models.OrderItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

func retryable(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeVersionConflict)
}
