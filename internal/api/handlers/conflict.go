package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConflictReviewer is the part of service.InsightService the conflict routes use.
type ConflictReviewer interface {
	Pending(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.ConflictLog, error)
	ProcessPending(ctx context.Context, projectID uuid.UUID) ([]domain.Alert, error)
	Resolve(ctx context.Context, projectID, logID uuid.UUID, status domain.ConflictStatus) (*domain.ConflictLog, error)
}

type ConflictHandler struct {
	svc ConflictReviewer
}

func NewConflictHandler(svc ConflictReviewer) *ConflictHandler {
	return &ConflictHandler{svc: svc}
}

type listConflictsResponse struct {
	Conflicts []domain.ConflictLog `json:"conflicts"`
	Count     int                  `json:"count"`
}

// ListPending returns the project's pending conflict logs, oldest first.
func (h *ConflictHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	logs, err := h.svc.Pending(r.Context(), projectID, limit)
	if err != nil {
		writeServiceError(w, err, "failed to list conflicts")
		return
	}
	if logs == nil {
		logs = []domain.ConflictLog{}
	}

	writeJSON(w, http.StatusOK, listConflictsResponse{Conflicts: logs, Count: len(logs)})
}

type explainResponse struct {
	Alerts []domain.Alert `json:"alerts"`
	Count  int            `json:"count"`
	Error  string         `json:"error,omitempty"`
}

// Explain generates alerts for unexplained pending conflicts now instead of
// waiting for the background worker. Partial failures still return 200 with
// the alerts that were produced.
func (h *ConflictHandler) Explain(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	alerts, err := h.svc.ProcessPending(r.Context(), projectID)
	if err != nil && len(alerts) == 0 {
		writeServiceError(w, err, "failed to explain conflicts")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}

	resp := explainResponse{Alerts: alerts, Count: len(alerts)}
	if err != nil {
		resp.Error = "some conflicts could not be explained"
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	Status string `json:"status"`
}

func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	logID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conflict id")
		return
	}

	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status := domain.ConflictStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	l, err := h.svc.Resolve(r.Context(), projectID, logID, status)
	if err != nil {
		writeServiceError(w, err, "failed to resolve conflict")
		return
	}

	writeJSON(w, http.StatusOK, l)
}
