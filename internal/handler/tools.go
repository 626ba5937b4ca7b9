package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tejzpr/formgate/internal/access"
	"github.com/tejzpr/formgate/internal/admin"
	"github.com/tejzpr/formgate/internal/form"
)

// Tools exposes the guest operations and token issuance as MCP tools.
type Tools struct {
	coordinator *access.Coordinator
	admin       *admin.Service
}

func NewTools(c *access.Coordinator, a *admin.Service) *Tools {
	return &Tools{coordinator: c, admin: a}
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("view_form",
		mcp.WithDescription("Open the form behind a guest access token. Does not consume the token."),
		mcp.WithString("token", mcp.Required(), mcp.Description("The guest access token")),
	), t.ViewForm)

	s.AddTool(mcp.NewTool("submit_form_response",
		mcp.WithDescription("Submit a guest's answers. Each token accepts exactly one submission."),
		mcp.WithString("token", mcp.Required(), mcp.Description("The guest access token")),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("The form the answers are for")),
		mcp.WithObject("answers", mcp.Required(), mcp.Description("Answers keyed by field name")),
	), t.SubmitFormResponse)

	s.AddTool(mcp.NewTool("issue_access_token",
		mcp.WithDescription("Assign a guest to a form and return their access link. Repeated calls return the same token."),
		mcp.WithString("admin_id", mcp.Required(), mcp.Description("The administrator owning the form")),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("The form to assign")),
		mcp.WithString("guest_id", mcp.Description("An existing guest id")),
		mcp.WithString("guest_email", mcp.Description("Guest email, used with guest_name when guest_id is not given")),
		mcp.WithString("guest_name", mcp.Description("Guest display name")),
		mcp.WithNumber("expires_in_days", mcp.Description("Days until the token expires; omit for no expiry")),
	), t.IssueAccessToken)
}

func (t *Tools) ViewForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := request.RequireString("token")
	if err != nil {
		return mcp.NewToolResultError("token is required"), nil
	}
	view, err := t.coordinator.ViewForm(ctx, token)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(view)
}

func (t *Tools) SubmitFormResponse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := request.RequireString("token")
	if err != nil {
		return mcp.NewToolResultError("token is required"), nil
	}
	formID, err := request.RequireString("form_id")
	if err != nil {
		return mcp.NewToolResultError("form_id is required"), nil
	}
	answers, ok := request.GetArguments()["answers"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("answers must be an object"), nil
	}

	resp, err := t.coordinator.SubmitResponse(ctx, token, formID, answers)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"submittedAt": resp.SubmittedAt})
}

func (t *Tools) IssueAccessToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	adminID, err := request.RequireString("admin_id")
	if err != nil {
		return mcp.NewToolResultError("admin_id is required"), nil
	}
	formID, err := request.RequireString("form_id")
	if err != nil {
		return mcp.NewToolResultError("form_id is required"), nil
	}
	ref := admin.GuestRef{
		GuestID: request.GetString("guest_id", ""),
		Email:   request.GetString("guest_email", ""),
		Name:    request.GetString("guest_name", ""),
	}
	var expires *int
	if v := request.GetFloat("expires_in_days", 0); v >= 1 {
		if v > access.MaxExpiresInDays {
			return mcp.NewToolResultError(access.ErrExpiryTooLong.Error()), nil
		}
		days := int(v)
		expires = &days
	}

	a, err := t.admin.AssignGuest(ctx, adminID, formID, ref, expires)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"id":        a.Token.ID,
		"token":     a.Token.Token,
		"link":      a.Link,
		"created":   a.Created,
		"guestId":   a.Guest.ID,
		"expiresAt": a.Token.ExpiresAt,
	})
}

// toolError turns caller-facing errors into tool results. Anything else is
// a server failure.
func toolError(err error) (*mcp.CallToolResult, error) {
	var invalid *access.ValidationError
	if errors.As(err, &invalid) {
		return mcp.NewToolResultError(validationMessage(invalid.Errors)), nil
	}
	if d, ok := access.AsDenied(err); ok {
		msg := d.Error()
		if d.SubmittedAt != nil {
			msg += " (submitted at " + d.SubmittedAt.Format(time.RFC3339) + ")"
		}
		if d.ExpiresAt != nil {
			msg += " (expired at " + d.ExpiresAt.Format(time.RFC3339) + ")"
		}
		return mcp.NewToolResultError(msg), nil
	}
	switch {
	case errors.Is(err, admin.ErrFormNotFound),
		errors.Is(err, admin.ErrGuestNotFound),
		errors.Is(err, admin.ErrGuestRequired),
		errors.Is(err, access.ErrExpiryTooLong):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

func validationMessage(errs []form.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Message)
	}
	return access.ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
