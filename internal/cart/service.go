package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/cache"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	defaultMaxAttempts = 3
	defaultExpiry      = 30 * 24 * time.Hour
	defaultCacheTTL    = 5 * time.Minute

	cartUserConstraint = "ux_carts_user_id"
)

// Service exposes the cart operations. Every mutation loads the cart, adjusts
// inventory reservations, recalculates totals and saves with a version check
// inside one transaction, retrying on VERSION_CONFLICT.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartView, error)
	UpdateItemQuantity(ctx context.Context, userID uuid.UUID, input UpdateItemInput) (*CartView, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, ref LineRef) (*CartView, error)
	RemoveItemByID(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	ApplyDiscount(ctx context.Context, userID uuid.UUID, input DiscountInput) (*CartView, error)
	RemoveDiscount(ctx context.Context, userID uuid.UUID) (*CartView, error)
	UpdateShippingMethod(ctx context.Context, userID uuid.UUID, method enums.ShippingMethod) (*CartView, error)
	ExpireCart(ctx context.Context, cartID uuid.UUID) (ExpiryResult, error)
}

// ExpiryResult reports what ExpireCart did. Expired is false when the cart was
// already inactive or had been touched since it was listed.
type ExpiryResult struct {
	Expired       bool
	ReleasedUnits int
}

// LineRef identifies a cart line by its variant.
type LineRef struct {
	ProductID uuid.UUID
	Size      string
	Color     string
}

func (r LineRef) variant() inventory.Variant {
	return inventory.Variant{ProductID: r.ProductID, Size: r.Size, Color: r.Color}
}

func (r LineRef) validate() error {
	if r.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if strings.TrimSpace(r.Size) == "" || strings.TrimSpace(r.Color) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size and color are required")
	}
	return nil
}

type AddItemInput struct {
	LineRef
	Quantity int
}

type UpdateItemInput struct {
	LineRef
	Quantity int
}

type DiscountInput struct {
	Code        string
	AmountCents *int64
	Percentage  *decimal.Decimal
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repository  CartRepository
	Tx          txRunner
	Products    productReader
	Ledger      inventory.Ledger
	Calculator  *pricing.Calculator
	Cache       cache.Cache
	CacheTTL    time.Duration
	Outbox      outbox.Emitter
	Metrics     *metrics.CommerceMetrics
	Logger      *logger.Logger
	Expiry      time.Duration
	MaxAttempts int
}

type service struct {
	repo        CartRepository
	tx          txRunner
	products    productReader
	ledger      inventory.Ledger
	calc        *pricing.Calculator
	cache       cache.Cache
	cacheTTL    time.Duration
	outbox      outbox.Emitter
	metrics     *metrics.CommerceMetrics
	logg        *logger.Logger
	expiry      time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
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
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &service{
		repo:        params.Repository,
		tx:          params.Tx,
		products:    params.Products,
		ledger:      params.Ledger,
		calc:        calc,
		cache:       c,
		cacheTTL:    ttl,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		expiry:      expiry,
		maxAttempts: attempts,
		now:         time.Now,
	}, nil
}

// mutation changes the aggregate and the reservations that back it. ledger is
// bound to the surrounding transaction.
type mutation func(ctx context.Context, agg *Aggregate, ledger inventory.Ledger) error

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	return cache.FetchVersioned(ctx, s.cache, s.logg, cache.CartKey(userID), s.cacheTTL, func(ctx context.Context) (*CartView, int64, error) {
		cart, err := s.ensureCart(ctx, userID)
		if err != nil {
			return nil, 0, err
		}
		return NewCartView(cart), cart.Version, nil
	})
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartView, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.activeProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, "add_item", func(ctx context.Context, agg *Aggregate, ledger inventory.Ledger) error {
		if err := ledger.Reserve(ctx, input.variant(), input.Quantity); err != nil {
			return err
		}
		return agg.AddItem(models.CartItem{
			ProductID:          product.ID,
			ProductTitle:       product.Title,
			SKU:                product.SKU,
			Size:               input.Size,
			Color:              input.Color,
			Quantity:           input.Quantity,
			UnitPriceCents:     product.PriceCents,
			OriginalPriceCents: product.CompareAtPriceCents,
		})
	})
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID uuid.UUID, input UpdateItemInput) (*CartView, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, "update_item", func(ctx context.Context, agg *Aggregate, ledger inventory.Ledger) error {
		v := input.variant()
		line, ok := agg.Line(v)
		if !ok {
			return itemNotFound(v)
		}
		target := input.Quantity
		if target < 0 {
			target = 0
		}
		switch delta := target - line.Quantity; {
		case delta > 0:
			if err := ledger.Reserve(ctx, v, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := ledger.Release(ctx, v, -delta); err != nil {
				return err
			}
		}
		_, err := agg.SetItemQuantity(v, target)
		return err
	})
}

func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, ref LineRef) (*CartView, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, "remove_item", func(ctx context.Context, agg *Aggregate, ledger inventory.Ledger) error {
		removed, err := agg.RemoveItem(ref.variant())
		if err != nil {
			return err
		}
		return ledger.Release(ctx, variantOf(removed), removed.Quantity)
	})
}

func (s *service) RemoveItemByID(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return s.mutate(ctx, userID, "remove_item", func(ctx context.Context, agg *Aggregate, ledger inventory.Ledger) error {
		removed, err := agg.RemoveItemByID(itemID)
		if err != nil {
			return err
		}
		return ledger.Release(ctx, variantOf(removed), removed.Quantity)
	})
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, "clear", func(ctx context.Context, agg *Aggregate, ledger inventory.Ledger) error {
		removed, err := agg.Clear()
		if err != nil {
			return err
		}
		return releaseAll(ctx, ledger, removed)
	})
}

func (s *service) ApplyDiscount(ctx context.Context, userID uuid.UUID, input DiscountInput) (*CartView, error) {
	return s.mutate(ctx, userID, "apply_discount", func(_ context.Context, agg *Aggregate, _ inventory.Ledger) error {
		return agg.ApplyDiscount(input.Code, input.AmountCents, input.Percentage)
	})
}

func (s *service) RemoveDiscount(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, "remove_discount", func(_ context.Context, agg *Aggregate, _ inventory.Ledger) error {
		return agg.RemoveDiscount()
	})
}

func (s *service) UpdateShippingMethod(ctx context.Context, userID uuid.UUID, method enums.ShippingMethod) (*CartView, error) {
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method").
			WithDetails(map[string]any{"shipping_method": string(method)})
	}
	return s.mutate(ctx, userID, "update_shipping", func(_ context.Context, agg *Aggregate, _ inventory.Ledger) error {
		return agg.SetShippingMethod(method)
	})
}

// ExpireCart releases the reservations of a stale cart, empties it and marks it
// inactive. Carts touched since they were listed are left alone.
func (s *service) ExpireCart(ctx context.Context, cartID uuid.UUID) (ExpiryResult, error) {
	var (
		released int
		expired  *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByID(ctx, cartID)
		if err != nil {
			return mapNotFound(err, "cart not found")
		}
		now := s.now().UTC()
		if !cart.IsActive || !cart.ExpiresAt.Before(now) {
			return nil
		}
		expected := cart.Version
		agg := NewAggregate(cart, s.calc)
		released = agg.ItemCount()
		removed, err := agg.Clear()
		if err != nil {
			return err
		}
		if err := releaseAll(ctx, s.ledger.WithTx(tx), removed); err != nil {
			return err
		}
		cart.IsActive = false
		if err := repo.Save(ctx, cart, expected); err != nil {
			return err
		}
		expired = cart
		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Data: outbox.CartExpiredEvent{
				CartID:        cart.ID,
				UserID:        cart.UserID,
				ReleasedUnits: released,
				ExpiredAt:     now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return ExpiryResult{}, err
	}
	if expired == nil {
		return ExpiryResult{}, nil
	}
	cache.Store(ctx, s.cache, s.logg, cache.CartKey(expired.UserID), s.cacheTTL, expired.Version, NewCartView(expired))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cart_id":        cartID.String(),
		"released_units": released,
	}), "cart expired")
	return ExpiryResult{Expired: true, ReleasedUnits: released}, nil
}

func (s *service) mutate(ctx context.Context, userID uuid.UUID, op string, fn mutation) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var cart *models.Cart
		cart, err = s.mutateOnce(ctx, userID, fn)
		if err == nil {
			s.metrics.CartMutation(op, "ok")
			view := NewCartView(cart)
			cache.Store(ctx, s.cache, s.logg, cache.CartKey(userID), s.cacheTTL, cart.Version, view)
			return view, nil
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeVersionConflict) {
			break
		}
		s.metrics.VersionConflict(op)
		logCtx := s.logg.WithFields(ctx, map[string]any{"op": op, "attempt": attempt})
		s.logg.Warn(logCtx, "cart version conflict")
	}

	if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		s.metrics.ReservationFailed()
	}
	s.metrics.CartMutation(op, resultLabel(err))
	return nil, err
}

func (s *service) mutateOnce(ctx context.Context, userID uuid.UUID, fn mutation) (*models.Cart, error) {
	if _, err := s.ensureCart(ctx, userID); err != nil {
		return nil, err
	}
	var out *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return mapNotFound(err, "cart not found")
		}
		expected := cart.Version
		agg := NewAggregate(cart, s.calc)
		if err := fn(ctx, agg, s.ledger.WithTx(tx)); err != nil {
			return err
		}
		agg.Touch(s.now(), s.expiry)
		if err := agg.Recalculate(); err != nil {
			return err
		}
		if err := repo.Save(ctx, cart, expected); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ensureCart returns the user's cart, creating it on first access. A racing
// creator loses on the unique user constraint and reloads the winner's row.
func (s *service) ensureCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	fresh := &models.Cart{
		UserID:         userID,
		ShippingMethod: enums.DefaultShippingMethod,
		IsActive:       true,
		Version:        1,
	}
	agg := NewAggregate(fresh, s.calc)
	agg.Touch(s.now(), s.expiry)
	if err := agg.Recalculate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		if !db.IsUniqueViolation(err, cartUserConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}
		cart, err = s.repo.FindByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
		}
		return cart, nil
	}
	s.logg.Info(s.logg.WithCartID(ctx, fresh.ID.String()), "cart created")
	return fresh, nil
}

func (s *service) activeProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func releaseAll(ctx context.Context, ledger inventory.Ledger, items []models.CartItem) error {
	for _, item := range items {
		if err := ledger.Release(ctx, variantOf(item), item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func resultLabel(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
