package inventory

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	reserveSQL = `UPDATE inventory_records
SET reserved = reserved + ?, updated_at = ?
WHERE product_id = ? AND size = ? AND color = ? AND quantity - reserved >= ?`

	releaseSQL = `UPDATE inventory_records
SET reserved = CASE WHEN reserved > ? THEN reserved - ? ELSE 0 END, updated_at = ?
WHERE product_id = ? AND size = ? AND color = ?`

	consumeSQL = `UPDATE inventory_records
SET quantity = quantity - ?, reserved = reserved - ?, updated_at = ?
WHERE product_id = ? AND size = ? AND color = ? AND reserved >= ?`

	restockSQL = `UPDATE inventory_records
SET quantity = quantity + ?, updated_at = ?
WHERE product_id = ? AND size = ? AND color = ?`

	setQuantitySQL = `UPDATE inventory_records
SET quantity = ?, updated_at = ?
WHERE product_id = ? AND size = ? AND color = ? AND reserved <= ?`
)

// Repository is the gorm-backed Ledger.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) WithTx(tx *gorm.DB) Ledger {
	return r.withTx(tx)
}

func (r *Repository) withTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// Get loads a single variant record.
func (r *Repository) Get(ctx context.Context, v Variant) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ? AND color = ?", v.ProductID, v.Size, v.Color).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory record")
	}
	return &record, nil
}

// Reserve holds qty units. It fails with INSUFFICIENT_STOCK when the variant is
// unknown or fewer than qty units are unreserved.
func (r *Repository) Reserve(ctx context.Context, v Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	res := r.db.WithContext(ctx).Exec(reserveSQL, qty, r.now().UTC(), v.ProductID, v.Size, v.Color, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		return InsufficientStock(v, qty)
	}
	return nil
}

// Release returns qty reserved units, clamping at zero. Unknown variants are
// ignored so releasing against a deleted product is harmless.
func (r *Repository) Release(ctx context.Context, v Variant, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Exec(releaseSQL, qty, qty, r.now().UTC(), v.ProductID, v.Size, v.Color)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release inventory")
	}
	return nil
}

// Consume converts qty reserved units into sold units.
func (r *Repository) Consume(ctx context.Context, v Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "consume quantity must be positive")
	}
	res := r.db.WithContext(ctx).Exec(consumeSQL, qty, qty, r.now().UTC(), v.ProductID, v.Size, v.Color, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "consume inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation missing for variant").WithDetails(variantDetails(v, qty))
	}
	return nil
}

// Restock adds qty units back on hand, e.g. after an order is cancelled.
func (r *Repository) Restock(ctx context.Context, v Variant, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Exec(restockSQL, qty, r.now().UTC(), v.ProductID, v.Size, v.Color)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "restock inventory")
	}
	return nil
}

// SetQuantity overwrites on-hand quantity. It refuses to drop below what is
// currently reserved.
func (r *Repository) SetQuantity(ctx context.Context, v Variant, qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	res := r.db.WithContext(ctx).Exec(setQuantitySQL, qty, r.now().UTC(), v.ProductID, v.Size, v.Color, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "set inventory quantity")
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, v); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity below reserved units").WithDetails(variantDetails(v, qty))
}

// InsufficientStock builds the typed error returned when a reservation cannot be made.
func InsufficientStock(v Variant, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for variant").WithDetails(variantDetails(v, requested))
}

func variantDetails(v Variant, qty int) map[string]any {
	return map[string]any{
		"product_id": v.ProductID.String(),
		"size":       v.Size,
		"color":      v.Color,
		"quantity":   qty,
	}
}
