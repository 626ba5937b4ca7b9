package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tejzpr/formgate/internal/access"
)

func (s *Server) handleViewForm(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Coordinator.ViewForm(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token     string          `json:"token"`
		Responses json.RawMessage `json:"responses"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Token == "" {
		writeError(w, http.StatusBadRequest, access.ErrTokenRequired.Error())
		return
	}
	answers, ok := decodeAnswers(body.Responses)
	if !ok {
		writeError(w, http.StatusBadRequest, "responses must be an object")
		return
	}

	resp, err := s.deps.Coordinator.SubmitResponse(r.Context(), body.Token, chi.URLParam(r, "formId"), answers)
	if err != nil {
		s.writeAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"submittedAt": resp.SubmittedAt})
}

// decodeAnswers accepts only a JSON object.
func decodeAnswers(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var answers map[string]any
	if err := json.Unmarshal(raw, &answers); err != nil || answers == nil {
		return nil, false
	}
	return answers, true
}
