package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/storybrain/internal/grammar"
	"github.com/Harshitk-cp/storybrain/internal/graph"
	"github.com/Harshitk-cp/storybrain/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func projectIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var perr *graph.PersistenceError
	switch {
	case errors.Is(err, service.ErrTextEmpty),
		errors.Is(err, service.ErrEntityNameEmpty),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflictNotFound),
		errors.Is(err, service.ErrEntityNotFound),
		errors.Is(err, service.ErrNotCharacter):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflictNotPending):
		return http.StatusConflict
	case errors.Is(err, grammar.ErrParse):
		return http.StatusBadGateway
	case errors.As(err, &perr),
		errors.Is(err, service.ErrSummarizerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Server-side failures
// are reported with fallback instead of the raw error text.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}
