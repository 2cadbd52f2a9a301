package product

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("STOREFRONT_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.InventoryRecord{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return conn
}
