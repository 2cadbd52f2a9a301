package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// FindByUser loads the user's cart with lines in insertion order.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart by id with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts an empty cart at version 1.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	if cart.Version == 0 {
		cart.Version = 1
	}
	return r.db.WithContext(ctx).Omit("Items").Create(cart).Error
}

// Save writes the whole aggregate if the stored version still equals
// expectedVersion, then replaces the cart lines. A stale version yields
// VERSION_CONFLICT and nothing is written.
func (r *Repository) Save(ctx context.Context, cart *models.Cart, expectedVersion int64) error {
	db := r.db.WithContext(ctx)
	now := r.now().UTC()
	res := db.Model(&models.Cart{}).
		Where("id = ? AND version = ?", cart.ID, expectedVersion).
		Updates(map[string]any{
			"subtotal_cents":          cart.SubtotalCents,
			"tax_cents":               cart.TaxCents,
			"shipping_method":         cart.ShippingMethod,
			"shipping_cost_cents":     cart.ShippingCostCents,
			"shipping_estimated_days": cart.ShippingEstimatedDays,
			"discount_code":           cart.DiscountCode,
			"discount_fixed_cents":    cart.DiscountFixedCents,
			"discount_amount_cents":   cart.DiscountAmountCents,
			"discount_percentage":     cart.DiscountPercentage,
			"total_cents":             cart.TotalCents,
			"expires_at":              cart.ExpiresAt,
			"is_active":               cart.IsActive,
			"version":                 expectedVersion + 1,
			"updated_at":              now,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save cart")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeVersionConflict, "cart was modified concurrently")
	}
	cart.Version = expectedVersion + 1
	cart.UpdatedAt = now

	if err := db.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart items")
	}
	if len(cart.Items) == 0 {
		return nil
	}
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	if err := db.Create(&cart.Items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write cart items")
	}
	return nil
}

// ListExpired returns active carts whose expiry passed before the cutoff.
func (r *Repository) ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Cart, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at < ?", true, before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&carts).Error
	return carts, err
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
