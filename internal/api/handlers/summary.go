package handlers

import (
	"context"
	"net/http"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CharacterSummarizer is the part of service.SummaryService the entity routes use.
type CharacterSummarizer interface {
	Refresh(ctx context.Context, projectID, entityID uuid.UUID) (*domain.Entity, error)
}

type SummaryHandler struct {
	svc CharacterSummarizer
}

func NewSummaryHandler(svc CharacterSummarizer) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

type refreshSummaryResponse struct {
	Status string         `json:"status"`
	Entity *domain.Entity `json:"entity"`
}

// Refresh rewrites a character's persona and story summaries on demand.
func (h *SummaryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	e, err := h.svc.Refresh(r.Context(), projectID, entityID)
	if err != nil {
		writeServiceError(w, err, "failed to refresh summary")
		return
	}

	writeJSON(w, http.StatusOK, refreshSummaryResponse{Status: "updated", Entity: e})
}
