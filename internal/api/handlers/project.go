package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Analyzer is the part of service.AnalysisService the project routes use.
type Analyzer interface {
	Analyze(ctx context.Context, projectID uuid.UUID, text string) (*service.AnalysisResult, error)
	SaveDraft(ctx context.Context, projectID uuid.UUID, text string) (*domain.NarrativeChunk, []domain.Warning, error)
	SeedEntities(ctx context.Context, projectID uuid.UUID, seeds []service.SeedEntity) ([]domain.Entity, error)
	Entities(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error)
	UpdateEntityMetadata(ctx context.Context, projectID, entityID uuid.UUID, metadata map[string]any) (*domain.Entity, error)
	StoryBrain(ctx context.Context, projectID uuid.UUID) (*service.StoryBrain, error)
	Facts(ctx context.Context, projectID uuid.UUID) ([]domain.AcceptedFact, error)
	ObjectsFor(ctx context.Context, projectID uuid.UUID, subject, relation string) ([]string, error)
	CheckFact(ctx context.Context, projectID uuid.UUID, subject, relation, object string) (*domain.Conflict, error)
}

type ProjectHandler struct {
	svc Analyzer
}

func NewProjectHandler(svc Analyzer) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

type contentRequest struct {
	Content string `json:"content"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *ProjectHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req contentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.Analyze(r.Context(), projectID, req.Content)
	if err != nil && result != nil {
		writeJSON(w, statusFor(err), partialAnalysisResponse{Error: "failed to analyze text", Partial: result})
		return
	}
	if err != nil {
		writeServiceError(w, err, "failed to analyze text")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// partialAnalysisResponse carries what an analysis committed before it failed.
type partialAnalysisResponse struct {
	Error   string                  `json:"error"`
	Partial *service.AnalysisResult `json:"partial"`
}

type saveChunkResponse struct {
	Status    string                 `json:"status"`
	ProjectID uuid.UUID              `json:"project_id"`
	Chunk     *domain.NarrativeChunk `json:"chunk"`
	Warnings  []domain.Warning       `json:"warnings,omitempty"`
}

// SaveChunk stores a draft without analyzing it.
func (h *ProjectHandler) SaveChunk(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req contentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	chunk, warnings, err := h.svc.SaveDraft(r.Context(), projectID, req.Content)
	if err != nil {
		writeServiceError(w, err, "failed to save chunk")
		return
	}

	writeJSON(w, http.StatusCreated, saveChunkResponse{
		Status:    "saved",
		ProjectID: projectID,
		Chunk:     chunk,
		Warnings:  warnings,
	})
}

func (h *ProjectHandler) StoryBrain(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	brain, err := h.svc.StoryBrain(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "failed to load story brain")
		return
	}

	writeJSON(w, http.StatusOK, brain)
}

type listEntitiesResponse struct {
	Entities []domain.Entity `json:"entities"`
	Count    int             `json:"count"`
}

func (h *ProjectHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	entities, err := h.svc.Entities(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "failed to list entities")
		return
	}
	if entities == nil {
		entities = []domain.Entity{}
	}

	writeJSON(w, http.StatusOK, listEntitiesResponse{Entities: entities, Count: len(entities)})
}

type seedEntitiesRequest struct {
	Entities []service.SeedEntity `json:"entities"`
}

// SeedEntities records the initial cast of a project.
func (h *ProjectHandler) SeedEntities(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req seedEntitiesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, "entities is required")
		return
	}

	seeded, err := h.svc.SeedEntities(r.Context(), projectID, req.Entities)
	if err != nil {
		writeServiceError(w, err, "failed to seed entities")
		return
	}

	writeJSON(w, http.StatusCreated, listEntitiesResponse{Entities: seeded, Count: len(seeded)})
}

type metadataRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// UpdateEntityMetadata merges the posted keys into the entity's metadata.
func (h *ProjectHandler) UpdateEntityMetadata(w http.ResponseWriter, r *http.Request) {
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

	var req metadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Metadata) == 0 {
		writeError(w, http.StatusBadRequest, "metadata is required")
		return
	}

	e, err := h.svc.UpdateEntityMetadata(r.Context(), projectID, entityID, req.Metadata)
	if err != nil {
		writeServiceError(w, err, "failed to update entity")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

type objectsResponse struct {
	Subject  string   `json:"subject"`
	Relation string   `json:"relation"`
	Objects  []string `json:"objects"`
}

type listFactsResponse struct {
	Facts []domain.AcceptedFact `json:"facts"`
	Count int                   `json:"count"`
}

// Facts lists the project graph. With ?subject= it returns the objects linked
// to that subject via ?relation= (RELATED_TO when omitted) instead.
func (h *ProjectHandler) Facts(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject != "" {
		relation := domain.NormalizeRelation(strings.TrimSpace(r.URL.Query().Get("relation")))
		if relation == "" {
			relation = domain.DefaultRelation
		}
		objects, err := h.svc.ObjectsFor(r.Context(), projectID, subject, relation)
		if err != nil {
			writeServiceError(w, err, "failed to load facts")
			return
		}
		if objects == nil {
			objects = []string{}
		}
		writeJSON(w, http.StatusOK, objectsResponse{Subject: subject, Relation: relation, Objects: objects})
		return
	}

	facts, err := h.svc.Facts(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "failed to load facts")
		return
	}
	if facts == nil {
		facts = []domain.AcceptedFact{}
	}

	writeJSON(w, http.StatusOK, listFactsResponse{Facts: facts, Count: len(facts)})
}

type checkFactRequest struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

type checkFactResponse struct {
	Consistent bool             `json:"consistent"`
	Conflict   *domain.Conflict `json:"conflict,omitempty"`
}

// CheckFact reports whether a fact would contradict the graph. Nothing is written.
func (h *ProjectHandler) CheckFact(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req checkFactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Object) == "" {
		writeError(w, http.StatusBadRequest, "subject and object are required")
		return
	}

	c, err := h.svc.CheckFact(r.Context(), projectID, req.Subject, req.Relation, req.Object)
	if err != nil {
		writeServiceError(w, err, "failed to check fact")
		return
	}

	writeJSON(w, http.StatusOK, checkFactResponse{Consistent: c == nil, Conflict: c})
}
