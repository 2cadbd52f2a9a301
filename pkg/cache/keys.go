package cache

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	ProductsPrefix = "products:"
	CartPrefix     = "cart:"
)

// CartKey is the key of a user's cart view.
func CartKey(userID uuid.UUID) string {
	return CartPrefix + userID.String()
}

// ProductKey is the key of a single product detail.
func ProductKey(productID uuid.UUID) string {
	return ProductsPrefix + "detail:" + productID.String()
}

// ProductListKey is the key of one catalog page.
func ProductListKey(category, cursor string, limit int) string {
	return fmt.Sprintf("%slist:%s:%s:%d", ProductsPrefix, category, cursor, limit)
}
