package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates a migrated in-memory SQLite DB for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := d.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(d); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return d
}

func seedPair(t *testing.T, d *gorm.DB) (*Form, *Guest) {
	t.Helper()
	f := &Form{AdminID: "admin-1", Title: "RSVP", IsActive: true}
	if err := d.Create(f).Error; err != nil {
		t.Fatalf("failed to create form: %v", err)
	}
	g := &Guest{AdminID: "admin-1", Name: "Ada", Email: "ada@example.com"}
	if err := d.Create(g).Error; err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}
	return f, g
}
