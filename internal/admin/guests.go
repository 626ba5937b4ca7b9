package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tejzpr/formgate/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GuestRef names a guest either by id or by email and display name.
type GuestRef struct {
	GuestID string
	Email   string
	Name    string
}

// ResolveGuest finds the referenced guest. Guests referenced by email are
// created on first use.
func (s *Service) ResolveGuest(ctx context.Context, adminID string, ref GuestRef) (*db.Guest, error) {
	if ref.GuestID != "" {
		return s.findGuest(ctx, "id = ? AND admin_id = ?", ref.GuestID, adminID)
	}

	email := db.NormalizeEmail(ref.Email)
	name := strings.TrimSpace(ref.Name)
	if email == "" || name == "" {
		return nil, ErrGuestRequired
	}

	g, err := s.findGuest(ctx, "email = ? AND admin_id = ?", email, adminID)
	if !errors.Is(err, ErrGuestNotFound) {
		return g, err
	}

	g = &db.Guest{AdminID: adminID, Name: name, Email: email}
	err = s.db.WithContext(ctx).Create(g).Error
	if db.IsDuplicateKey(err) {
		// Created concurrently by another request.
		return s.findGuest(ctx, "email = ? AND admin_id = ?", email, adminID)
	}
	if err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	return g, nil
}

func (s *Service) findGuest(ctx context.Context, query string, args ...any) (*db.Guest, error) {
	var g db.Guest
	err := s.db.WithContext(ctx).Where(query, args...).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup guest: %w", err)
	}
	return &g, nil
}

// Assignment is the result of handing a form to a guest.
type Assignment struct {
	Token   *db.AccessToken
	Form    *db.Form
	Guest   *db.Guest
	Link    string
	Created bool
}

// AssignGuest issues (or re-returns) the access token binding a guest to
// one of the admin's forms. A guest who already submitted yields
// access.ErrAlreadySubmitted.
func (s *Service) AssignGuest(ctx context.Context, adminID, formID string, ref GuestRef, expiresInDays *int) (*Assignment, error) {
	f, err := s.GetForm(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}
	g, err := s.ResolveGuest(ctx, adminID, ref)
	if err != nil {
		return nil, err
	}
	at, created, err := s.issuer.Issue(ctx, f.ID, g.ID, expiresInDays)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("guest assigned to form", zap.String("form_id", f.ID), zap.String("guest_id", g.ID))
	}
	return &Assignment{Token: at, Form: f, Guest: g, Link: s.Link(at.Token), Created: created}, nil
}

type GuestInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FormGuest is one access token on a form as the admin sees it.
type FormGuest struct {
	ID          string     `json:"id"`
	Guest       GuestInfo  `json:"guest"`
	Token       string     `json:"token"`
	Link        string     `json:"link"`
	IsSubmitted bool       `json:"isSubmitted"`
	SubmittedAt *time.Time `json:"submittedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func (s *Service) ListFormGuests(ctx context.Context, adminID, formID string) ([]FormGuest, error) {
	if _, err := s.GetForm(ctx, adminID, formID); err != nil {
		return nil, err
	}
	var tokens []db.AccessToken
	if err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("created_at DESC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("list access tokens: %w", err)
	}
	guests, err := s.guestsByID(ctx, tokenGuestIDs(tokens))
	if err != nil {
		return nil, err
	}

	out := make([]FormGuest, 0, len(tokens))
	for _, at := range tokens {
		g := guests[at.GuestID]
		out = append(out, FormGuest{
			ID:          at.ID,
			Guest:       GuestInfo{ID: g.ID, Name: g.Name, Email: g.Email},
			Token:       at.Token,
			Link:        s.Link(at.Token),
			IsSubmitted: at.IsSubmitted,
			SubmittedAt: at.SubmittedAt,
			CreatedAt:   at.CreatedAt,
			ExpiresAt:   at.ExpiresAt,
		})
	}
	return out, nil
}

func (s *Service) guestsByID(ctx context.Context, ids []string) (map[string]db.Guest, error) {
	out := make(map[string]db.Guest, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var guests []db.Guest
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	for _, g := range guests {
		out[g.ID] = g
	}
	return out, nil
}

func tokenGuestIDs(tokens []db.AccessToken) []string {
	ids := make([]string, 0, len(tokens))
	for _, at := range tokens {
		ids = append(ids, at.GuestID)
	}
	return ids
}
