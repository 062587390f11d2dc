package services

import (
	"testing"

	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupSQLiteTestDB creates an in-memory SQLite database for testing.
// The pool is pinned to one connection so every query sees the same in-memory database.
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.AgentProfile{},
		&models.Property{},
		&models.Transaction{},
		&models.Client{},
		&models.OfferRequest{},
		&models.Vendor{},
		&models.SetupLinkJob{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestData removes all test data from the database.
// Exported for use in handler tests
func CleanupTestData(t *testing.T, db *gorm.DB) {
	for _, table := range []string{
		"setup_link_jobs", "vendors", "offer_requests", "clients",
		"transactions", "properties", "agent_profiles",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", table, err)
		}
	}
}
