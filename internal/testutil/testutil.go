// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/form"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const AdminID = "admin-test-001"

// SetupTestDB opens a migrated in-memory sqlite database. The pool is
// limited to one connection so every caller sees the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(d); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return d
}

// Fields is the two-question schema used throughout the tests.
func Fields() []form.FieldSpec {
	return []form.FieldSpec{
		{Name: "age", Label: "Age", Type: form.Number, Required: true},
		{Name: "plan", Label: "Plan", Type: form.Dropdown, Options: []string{"A", "B"}, Required: true},
	}
}

// ValidAnswers satisfies Fields.
func ValidAnswers() map[string]any {
	return map[string]any{"age": "30", "plan": "A"}
}

func SeedForm(t *testing.T, d *gorm.DB, adminID string, active bool) *db.Form {
	t.Helper()
	f := &db.Form{
		AdminID:     adminID,
		Title:       "Event RSVP",
		Description: "Tell us if you are coming",
		Fields:      Fields(),
		IsActive:    active,
	}
	if err := d.Create(f).Error; err != nil {
		t.Fatalf("failed to seed form: %v", err)
	}
	return f
}

func SeedGuest(t *testing.T, d *gorm.DB, adminID, name, email string) *db.Guest {
	t.Helper()
	g := &db.Guest{AdminID: adminID, Name: name, Email: email}
	if err := d.Create(g).Error; err != nil {
		t.Fatalf("failed to seed guest: %v", err)
	}
	return g
}

// SeedToken stores an open access token with the given raw value.
func SeedToken(t *testing.T, d *gorm.DB, formID, guestID, token string, expiresAt *time.Time) *db.AccessToken {
	t.Helper()
	at := &db.AccessToken{FormID: formID, GuestID: guestID, Token: token, ExpiresAt: expiresAt}
	if err := d.Create(at).Error; err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}
	return at
}

// MarkSubmitted flips a seeded token to submitted without a response row.
func MarkSubmitted(t *testing.T, d *gorm.DB, at *db.AccessToken, when time.Time) {
	t.Helper()
	err := d.Model(&db.AccessToken{}).Where("id = ?", at.ID).Updates(map[string]any{
		"is_submitted": true,
		"submitted_at": when,
	}).Error
	if err != nil {
		t.Fatalf("failed to mark submitted: %v", err)
	}
	at.IsSubmitted = true
	at.SubmittedAt = &when
}

// CountResponses returns the number of stored responses for a token.
func CountResponses(t *testing.T, d *gorm.DB, accessTokenID string) int64 {
	t.Helper()
	var n int64
	if err := d.Model(&db.Response{}).Where("access_token_id = ?", accessTokenID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count responses: %v", err)
	}
	return n
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
