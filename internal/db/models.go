package db

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tejzpr/formgate/internal/form"
	"gorm.io/gorm"
)

type Form struct {
	ID          string           `json:"id" gorm:"primaryKey;size:36"`
	AdminID     string           `json:"-" gorm:"size:64;index;not null"`
	Title       string           `json:"title" gorm:"not null"`
	Description string           `json:"description" gorm:"type:text"`
	Fields      []form.FieldSpec `json:"fields" gorm:"serializer:json;type:text;not null"`
	IsActive    bool             `json:"isActive" gorm:"not null"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (f *Form) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

type Guest struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	AdminID   string    `json:"-" gorm:"size:64;not null;uniqueIndex:idx_guests_admin_email"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null;uniqueIndex:idx_guests_admin_email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g *Guest) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.Email = NormalizeEmail(g.Email)
	return nil
}

// NormalizeEmail is the canonical stored form of a guest email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccessToken binds one guest to one form. It moves from open to
// submitted exactly once and is never reopened.
type AccessToken struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	FormID      string     `json:"formId" gorm:"size:36;not null;uniqueIndex:idx_access_tokens_form_guest"`
	GuestID     string     `json:"guestId" gorm:"size:36;not null;uniqueIndex:idx_access_tokens_form_guest;index"`
	Token       string     `json:"token" gorm:"size:64;not null;uniqueIndex"`
	IsSubmitted bool       `json:"isSubmitted" gorm:"not null;default:false"`
	SubmittedAt *time.Time `json:"submittedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func (a *AccessToken) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the token had an expiry that lies before now.
func (a *AccessToken) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Response is the single set of answers recorded for an AccessToken.
type Response struct {
	ID            string         `json:"id" gorm:"primaryKey;size:36"`
	FormID        string         `json:"formId" gorm:"size:36;not null;index"`
	AccessTokenID string         `json:"accessTokenId" gorm:"size:36;not null;uniqueIndex"`
	GuestID       string         `json:"guestId" gorm:"size:36;not null;index"`
	Answers       map[string]any `json:"answers" gorm:"serializer:json;type:text;not null"`
	SubmittedAt   time.Time      `json:"submittedAt" gorm:"not null;index"`
}

func (r *Response) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{&Form{}, &Guest{}, &AccessToken{}, &Response{}}
}
