package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/angelmondragon/storefront-backend/internal/products"
)

// WishlistItemDTO pairs a saved product with when it was saved. Product is nil
// when the product has since been removed or deactivated.
type WishlistItemDTO struct {
	ProductID uuid.UUID           `json:"product_id"`
	Product   *product.ProductDTO `json:"product,omitempty"`
	Available bool                `json:"available"`
	CreatedAt time.Time           `json:"created_at"`
}
