package access

import (
	"context"
	"errors"

	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/form"
	"go.uber.org/zap"
)

// FormView is what a guest sees when opening a token link. It never
// includes the owning administrator.
type FormView struct {
	Form  FormSummary  `json:"form"`
	Guest GuestSummary `json:"guest"`
	Token string       `json:"token"`
}

type FormSummary struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Fields      []form.FieldSpec `json:"fields"`
}

type GuestSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Notifier is told about every stored response.
type Notifier interface {
	Notify(adminID string, resp *db.Response)
}

// Coordinator serves the two guest-facing operations.
type Coordinator struct {
	validator *Validator
	guard     *Guard
	notifier  Notifier
	opts      options
}

// NewCoordinator wires the guest operations. notifier may be nil.
func NewCoordinator(v *Validator, g *Guard, notifier Notifier, opts ...Option) *Coordinator {
	return &Coordinator{validator: v, guard: g, notifier: notifier, opts: buildOptions(opts)}
}

// ViewForm returns the form and guest behind a valid token. It never
// changes state.
func (c *Coordinator) ViewForm(ctx context.Context, token string) (*FormView, error) {
	grant, err := c.validator.Validate(ctx, token)
	if err != nil {
		return nil, c.report("view form", err)
	}
	return &FormView{
		Form: FormSummary{
			ID:          grant.Form.ID,
			Title:       grant.Form.Title,
			Description: grant.Form.Description,
			Fields:      grant.Form.Fields,
		},
		Guest: GuestSummary{Name: grant.Guest.Name, Email: grant.Guest.Email},
		Token: grant.Token.Token,
	}, nil
}

// SubmitResponse stores the guest's answers. formID is the form the
// request claims to target and must match the token's form.
func (c *Coordinator) SubmitResponse(ctx context.Context, token, formID string, answers map[string]any) (*db.Response, error) {
	grant, err := c.validator.Validate(ctx, token)
	if err != nil {
		return nil, c.report("submit response", err)
	}
	if grant.Token.FormID != formID {
		return nil, deny(ErrFormMismatch)
	}

	resp, err := c.guard.submitGrant(ctx, grant, answers)
	if err != nil {
		return nil, c.report("submit response", err)
	}
	if c.notifier != nil {
		c.notifier.Notify(grant.Form.AdminID, resp)
	}
	return resp, nil
}

// report logs infrastructure failures; classified denials pass through.
func (c *Coordinator) report(op string, err error) error {
	var denied *DeniedError
	var invalid *ValidationError
	if !errors.As(err, &denied) && !errors.As(err, &invalid) {
		c.opts.logger.Error(op+" failed", zap.Error(err))
	}
	return err
}
