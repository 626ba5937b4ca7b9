package webserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tejzpr/formgate/internal/access"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// internalError logs err and answers without exposing it.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeAccessError maps access errors to guest-facing responses.
func (s *Server) writeAccessError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *access.ValidationError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  access.ErrValidationFailed.Error(),
			"errors": invalid.Errors,
		})
		return
	}
	denied, ok := access.AsDenied(err)
	if !ok {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, deniedStatus(denied.Reason), deniedBody(denied))
}

func deniedStatus(reason error) int {
	switch reason {
	case access.ErrTokenRequired:
		return http.StatusBadRequest
	case access.ErrTokenNotFound:
		return http.StatusNotFound
	default:
		return http.StatusForbidden
	}
}

func deniedBody(d *access.DeniedError) map[string]any {
	body := map[string]any{"error": d.Error()}
	if d.SubmittedAt != nil {
		body["submittedAt"] = d.SubmittedAt
	}
	if d.ExpiresAt != nil {
		body["expiresAt"] = d.ExpiresAt
	}
	return body
}
