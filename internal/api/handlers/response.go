package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/user-api/internal/apperr"
	"github.com/rs/zerolog/log"
)

// Envelope is the uniform JSON wrapper of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeList(w http.ResponseWriter, message string, data interface{}, count int) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Count: &count})
}

// WriteFailure writes an unsuccessful envelope with the given status.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// Unauthorized is the rejection writer used by the auth middleware.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteFailure(w, http.StatusUnauthorized, message)
}

// writeError maps err onto the status and envelope of its kind. Internal
// errors carry the underlying error text.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Internal server error", err)
	}

	body := Envelope{Success: false, Message: appErr.Message}
	if appErr.Kind == apperr.KindInternal && appErr.Err != nil {
		body.Error = appErr.Err.Error()
	}
	writeJSON(w, appErr.Kind.HTTPStatus(), body)
}

// decodeJSON reads the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
