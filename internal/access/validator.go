package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/tejzpr/formgate/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Grant is a token that currently allows viewing and submitting, joined
// with its form and guest.
type Grant struct {
	Token *db.AccessToken
	Form  *db.Form
	Guest *db.Guest
}

// Validator decides whether a presented token grants access right now.
type Validator struct {
	db   *gorm.DB
	opts options
}

func NewValidator(d *gorm.DB, opts ...Option) *Validator {
	return &Validator{db: d, opts: buildOptions(opts)}
}

// Validate looks the token up and checks, in order: existence, submission
// state, expiry, and whether the form is active. The first failing check
// is returned as a *DeniedError. A token whose form or guest no longer
// exists is reported as not found.
func (v *Validator) Validate(ctx context.Context, token string) (*Grant, error) {
	if token == "" {
		return nil, deny(ErrTokenRequired)
	}

	var at db.AccessToken
	err := v.db.WithContext(ctx).Where("token = ?", token).First(&at).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, deny(ErrTokenNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	if at.IsSubmitted {
		return nil, &DeniedError{Reason: ErrAlreadySubmitted, SubmittedAt: at.SubmittedAt}
	}
	if at.Expired(v.opts.now()) {
		return nil, &DeniedError{Reason: ErrTokenExpired, ExpiresAt: at.ExpiresAt}
	}

	var f db.Form
	err = v.db.WithContext(ctx).Where("id = ?", at.FormID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		v.opts.logger.Warn("token references missing form", zap.String("access_token_id", at.ID), zap.String("form_id", at.FormID))
		return nil, deny(ErrTokenNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup form: %w", err)
	}
	if !f.IsActive {
		return nil, deny(ErrFormInactive)
	}

	var g db.Guest
	err = v.db.WithContext(ctx).Where("id = ?", at.GuestID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		v.opts.logger.Warn("token references missing guest", zap.String("access_token_id", at.ID), zap.String("guest_id", at.GuestID))
		return nil, deny(ErrTokenNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup guest: %w", err)
	}

	return &Grant{Token: &at, Form: &f, Guest: &g}, nil
}
