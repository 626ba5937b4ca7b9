package webserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tejzpr/formgate/internal/access"
	"github.com/tejzpr/formgate/internal/admin"
	"github.com/tejzpr/formgate/internal/auth"
	"github.com/tejzpr/formgate/internal/form"
)

func (s *Server) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, admin.ErrFormNotFound), errors.Is(err, admin.ErrGuestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, admin.ErrGuestRequired),
		errors.Is(err, admin.ErrTitleRequired),
		errors.Is(err, form.ErrInvalidSchema),
		errors.Is(err, access.ErrExpiryTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrAlreadySubmitted):
		if d, ok := access.AsDenied(err); ok {
			writeJSON(w, http.StatusBadRequest, deniedBody(d))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req admin.NewForm
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := s.deps.Admin.CreateForm(r.Context(), auth.AdminID(r.Context()), req)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.deps.Admin.ListForms(r.Context(), auth.AdminID(r.Context()))
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

func (s *Server) handleReplaceForm(w http.ResponseWriter, r *http.Request) {
	var req admin.NewForm
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := s.deps.Admin.UpdateForm(r.Context(), auth.AdminID(r.Context()), chi.URLParam(r, "formId"), req)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Admin.GetForm(r.Context(), auth.AdminID(r.Context()), chi.URLParam(r, "formId"))
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}
	f, err := s.deps.Admin.SetActive(r.Context(), auth.AdminID(r.Context()), chi.URLParam(r, "formId"), *req.IsActive)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "formId")
	if err := s.deps.Admin.DeleteForm(r.Context(), auth.AdminID(r.Context()), id); err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

type assignmentResponse struct {
	ID          string          `json:"id"`
	FormID      string          `json:"formId"`
	Guest       admin.GuestInfo `json:"guest"`
	Token       string          `json:"token"`
	Link        string          `json:"link"`
	IsSubmitted bool            `json:"isSubmitted"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   *time.Time      `json:"expiresAt"`
}

func (s *Server) handleAssignGuest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuestID       string `json:"guestId"`
		GuestEmail    string `json:"guestEmail"`
		GuestName     string `json:"guestName"`
		ExpiresInDays *int   `json:"expiresInDays"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := s.deps.Admin.AssignGuest(r.Context(), auth.AdminID(r.Context()), chi.URLParam(r, "formId"),
		admin.GuestRef{GuestID: req.GuestID, Email: req.GuestEmail, Name: req.GuestName}, req.ExpiresInDays)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}

	status := http.StatusOK
	if a.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, assignmentResponse{
		ID:          a.Token.ID,
		FormID:      a.Form.ID,
		Guest:       admin.GuestInfo{ID: a.Guest.ID, Name: a.Guest.Name, Email: a.Guest.Email},
		Token:       a.Token.Token,
		Link:        a.Link,
		IsSubmitted: a.Token.IsSubmitted,
		CreatedAt:   a.Token.CreatedAt,
		ExpiresAt:   a.Token.ExpiresAt,
	})
}

func (s *Server) handleListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := s.deps.Admin.ListFormGuests(r.Context(), auth.AdminID(r.Context()), chi.URLParam(r, "formId"))
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guests)
}

func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Admin.ListResponses(r.Context(), auth.AdminID(r.Context()), chi.URLParam(r, "formId"))
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
