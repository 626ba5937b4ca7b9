package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tejzpr/formgate/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxIssueAttempts bounds retries after unique-constraint failures, which
// come from a concurrent issuer for the same pair or a token collision.
const maxIssueAttempts = 5

// MaxExpiresInDays bounds the token lifetime so expiry stays a four-digit
// year, which stored timestamps need to compare correctly.
const MaxExpiresInDays = 1_000_000

// Issuer mints access tokens. Callers must have checked that the form and
// guest exist and belong to the same administrator.
type Issuer struct {
	db       *gorm.DB
	opts     options
	newToken func() (string, error)
}

func NewIssuer(d *gorm.DB, opts ...Option) *Issuer {
	return &Issuer{db: d, opts: buildOptions(opts), newToken: NewToken}
}

// Issue returns the access token for (formID, guestID), creating it when
// none exists. The boolean reports whether a new record was stored. An
// existing token that was already submitted yields a *DeniedError with
// ErrAlreadySubmitted. A positive expiresInDays sets the expiry; otherwise
// the token never expires. A lifetime above MaxExpiresInDays yields
// ErrExpiryTooLong.
func (i *Issuer) Issue(ctx context.Context, formID, guestID string, expiresInDays *int) (*db.AccessToken, bool, error) {
	if expiresInDays != nil && *expiresInDays > MaxExpiresInDays {
		return nil, false, ErrExpiryTooLong
	}
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		existing, err := i.findPair(ctx, formID, guestID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			if existing.IsSubmitted {
				return nil, false, &DeniedError{Reason: ErrAlreadySubmitted, SubmittedAt: existing.SubmittedAt}
			}
			return existing, false, nil
		}

		value, err := i.newToken()
		if err != nil {
			return nil, false, fmt.Errorf("generate token: %w", err)
		}
		at := &db.AccessToken{
			FormID:    formID,
			GuestID:   guestID,
			Token:     value,
			CreatedAt: i.opts.now(),
			ExpiresAt: i.expiry(expiresInDays),
		}
		err = i.db.WithContext(ctx).Create(at).Error
		if err == nil {
			i.opts.logger.Info("access token issued",
				zap.String("access_token_id", at.ID),
				zap.String("form_id", formID),
				zap.String("guest_id", guestID))
			return at, true, nil
		}
		if !db.IsDuplicateKey(err) {
			return nil, false, fmt.Errorf("create access token: %w", err)
		}
		// Either a concurrent issuer won the (form, guest) pair, which the
		// next lookup returns, or the token value collided and a fresh one
		// is drawn.
		i.opts.logger.Debug("access token insert conflict, retrying",
			zap.String("form_id", formID),
			zap.String("guest_id", guestID),
			zap.Int("attempt", attempt+1))
	}
	return nil, false, fmt.Errorf("create access token: no unique token after %d attempts", maxIssueAttempts)
}

func (i *Issuer) findPair(ctx context.Context, formID, guestID string) (*db.AccessToken, error) {
	var at db.AccessToken
	err := i.db.WithContext(ctx).Where("form_id = ? AND guest_id = ?", formID, guestID).First(&at).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup access token: %w", err)
	}
	return &at, nil
}

func (i *Issuer) expiry(days *int) *time.Time {
	if days == nil || *days <= 0 {
		return nil
	}
	t := i.opts.now().AddDate(0, 0, *days)
	return &t
}
