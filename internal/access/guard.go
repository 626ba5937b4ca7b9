package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/form"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Guard records at most one response per access token. The open to
// submitted transition and the response insert happen in one transaction
// whose UPDATE re-checks every precondition, so concurrent submissions for
// the same token resolve to a single winner across processes.
type Guard struct {
	db        *gorm.DB
	validator *Validator
	opts      options
}

func NewGuard(d *gorm.DB, v *Validator, opts ...Option) *Guard {
	return &Guard{db: d, validator: v, opts: buildOptions(opts)}
}

// Submit validates the token and the answers and stores the response.
// Losing a race to another submission yields ErrAlreadySubmitted.
func (g *Guard) Submit(ctx context.Context, token string, answers map[string]any) (*db.Response, error) {
	grant, err := g.validator.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return g.submitGrant(ctx, grant, answers)
}

func (g *Guard) submitGrant(ctx context.Context, grant *Grant, answers map[string]any) (*db.Response, error) {
	if errs := form.Validate(grant.Form.Fields, answers); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	resp := &db.Response{
		FormID:        grant.Form.ID,
		AccessTokenID: grant.Token.ID,
		GuestID:       grant.Token.GuestID,
		Answers:       knownAnswers(grant.Form.Fields, answers),
		SubmittedAt:   g.opts.now(),
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return consume(tx, grant.Token, resp)
	})
	if errors.Is(err, errConflict) {
		g.opts.logger.Info("submission lost race",
			zap.String("access_token_id", grant.Token.ID),
			zap.String("form_id", grant.Form.ID))
		return nil, g.diagnose(ctx, grant.Token.Token)
	}
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	g.opts.logger.Info("response submitted",
		zap.String("response_id", resp.ID),
		zap.String("access_token_id", grant.Token.ID),
		zap.String("form_id", grant.Form.ID))
	return resp, nil
}

// consume is the conditional write. The UPDATE only matches an open,
// unexpired token on an active form; the unique index on
// responses.access_token_id backs it up.
func consume(tx *gorm.DB, at *db.AccessToken, resp *db.Response) error {
	result := tx.Model(&db.AccessToken{}).
		Where("id = ? AND is_submitted = ?", at.ID, false).
		Where("(expires_at IS NULL OR expires_at >= ?)", resp.SubmittedAt).
		Where("EXISTS (SELECT 1 FROM forms WHERE forms.id = access_tokens.form_id AND forms.is_active = ?)", true).
		Updates(map[string]any{
			"is_submitted": true,
			"submitted_at": resp.SubmittedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("mark token submitted: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errConflict
	}

	if err := tx.Create(resp).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return errConflict
		}
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

// diagnose explains a failed conditional write. A token that still looks
// valid after losing the write is reported as already submitted.
func (g *Guard) diagnose(ctx context.Context, token string) error {
	_, err := g.validator.Validate(ctx, token)
	if err == nil {
		return deny(ErrAlreadySubmitted)
	}
	return err
}

// knownAnswers drops answers for names that are not fields of the form.
func knownAnswers(fields []form.FieldSpec, answers map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := answers[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
