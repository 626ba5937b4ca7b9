package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/tejzpr/formgate/internal/db"
)

type ResponseEntry struct {
	ID          string         `json:"id"`
	Guest       GuestInfo      `json:"guest"`
	Answers     map[string]any `json:"answers"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

type ResponseList struct {
	Form      *db.Form        `json:"form"`
	Responses []ResponseEntry `json:"responses"`
	Total     int             `json:"total"`
}

// ListResponses returns a form's responses, newest first.
func (s *Service) ListResponses(ctx context.Context, adminID, formID string) (*ResponseList, error) {
	f, err := s.GetForm(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}
	var rows []db.Response
	if err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("submitted_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GuestID)
	}
	guests, err := s.guestsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]ResponseEntry, 0, len(rows))
	for _, r := range rows {
		g := guests[r.GuestID]
		entries = append(entries, ResponseEntry{
			ID:          r.ID,
			Guest:       GuestInfo{ID: g.ID, Name: g.Name, Email: g.Email},
			Answers:     r.Answers,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return &ResponseList{Form: f, Responses: entries, Total: len(entries)}, nil
}
