package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tejzpr/formgate/internal/access"
	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/form"
	"github.com/tejzpr/formgate/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrFormNotFound  = errors.New("form not found")
	ErrGuestNotFound = errors.New("guest not found")
	ErrGuestRequired = errors.New("either guestId or both guestEmail and guestName are required")
	ErrTitleRequired = errors.New("title is required")
)

// Service is the administrator-side collaborator of the access core.
// Every operation takes the acting admin explicitly and only touches
// records owned by that admin.
type Service struct {
	db          *gorm.DB
	issuer      *access.Issuer
	frontendURL string
	logger      *zap.Logger
}

func NewService(d *gorm.DB, issuer *access.Issuer, frontendURL string, logger *zap.Logger) *Service {
	return &Service{
		db:          d,
		issuer:      issuer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logging.OrNop(logger),
	}
}

// Link is the guest-facing URL for a token.
func (s *Service) Link(token string) string {
	return s.frontendURL + "/form/" + token
}

type NewForm struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Fields      []form.FieldSpec `json:"fields"`
	IsActive    *bool            `json:"isActive"`
}

func checkForm(in NewForm) (string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if err := form.CheckSchema(in.Fields); err != nil {
		return "", err
	}
	return title, nil
}

func (s *Service) CreateForm(ctx context.Context, adminID string, in NewForm) (*db.Form, error) {
	title, err := checkForm(in)
	if err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	f := &db.Form{
		AdminID:     adminID,
		Title:       title,
		Description: in.Description,
		Fields:      in.Fields,
		IsActive:    active,
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	s.logger.Info("form created", zap.String("form_id", f.ID), zap.String("admin_id", adminID))
	return f, nil
}

func (s *Service) GetForm(ctx context.Context, adminID, formID string) (*db.Form, error) {
	var f db.Form
	err := s.db.WithContext(ctx).Where("id = ? AND admin_id = ?", formID, adminID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup form: %w", err)
	}
	return &f, nil
}

// ListForms returns the admin's forms, newest first.
func (s *Service) ListForms(ctx context.Context, adminID string) ([]db.Form, error) {
	forms := []db.Form{}
	if err := s.db.WithContext(ctx).Where("admin_id = ?", adminID).Order("created_at DESC").Find(&forms).Error; err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// UpdateForm replaces title, description and fields. IsActive is only
// changed when set. Existing tokens and responses are kept.
func (s *Service) UpdateForm(ctx context.Context, adminID, formID string, in NewForm) (*db.Form, error) {
	title, err := checkForm(in)
	if err != nil {
		return nil, err
	}
	f, err := s.GetForm(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}
	f.Title = title
	f.Description = in.Description
	f.Fields = in.Fields
	if in.IsActive != nil {
		f.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Save(f).Error; err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}
	s.logger.Info("form updated", zap.String("form_id", f.ID), zap.String("admin_id", adminID))
	return f, nil
}

// SetActive opens or closes a form to guests.
func (s *Service) SetActive(ctx context.Context, adminID, formID string, active bool) (*db.Form, error) {
	f, err := s.GetForm(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(f).Updates(map[string]any{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}
	f.IsActive = active
	return f, nil
}

// DeleteForm removes a form together with its tokens and responses.
func (s *Service) DeleteForm(ctx context.Context, adminID, formID string) error {
	if _, err := s.GetForm(ctx, adminID, formID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("form_id = ?", formID).Delete(&db.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", formID).Delete(&db.AccessToken{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", formID).Delete(&db.Form{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	s.logger.Info("form deleted", zap.String("form_id", formID), zap.String("admin_id", adminID))
	return nil
}
