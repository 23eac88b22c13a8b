package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/extract"
	"github.com/Harshitk-cp/storybrain/internal/grammar"
	"github.com/Harshitk-cp/storybrain/internal/graph"
	"github.com/Harshitk-cp/storybrain/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	recentChunkLimit  = 10
	similarChunkLimit = 3
)

var (
	ErrTextEmpty       = errors.New("content is required")
	ErrEntityNameEmpty = errors.New("entity name is required")
	ErrEntityNotFound  = errors.New("entity not found")
)

// Warning stages reported in AnalysisResult.Warnings.
const (
	StageEmbedding = "embedding"
	StageContext   = "context"
	StageExplain   = "explain"
	StageSummary   = "summary"
)

type DetectedEntity struct {
	ID    uuid.UUID         `json:"id"`
	Name  string            `json:"name"`
	Label string            `json:"label"`
	Kind  domain.EntityKind `json:"entity_type"`
}

type AnalysisResult struct {
	ProjectID uuid.UUID         `json:"project_id"`
	ChunkID   uuid.UUID         `json:"chunk_id"`
	Entities  []DetectedEntity  `json:"entities"`
	Actions   []domain.Triple   `json:"detected_actions"`
	Conflicts []domain.Conflict `json:"conflicts"`
	Alerts    []domain.Alert    `json:"alerts"`
	Context   []string          `json:"context,omitempty"`
	Graph     graph.LoadStats   `json:"graph"`
	Warnings  []domain.Warning  `json:"warnings,omitempty"`
}

type SeedEntity struct {
	Name        string            `json:"name"`
	Kind        domain.EntityKind `json:"entity_type"`
	Description string            `json:"description"`
}

type StoryBrain struct {
	ProjectID    uuid.UUID               `json:"project_id"`
	Entities     []domain.Entity         `json:"entities"`
	RecentChunks []domain.NarrativeChunk `json:"recent_chunks"`
	Facts        []domain.AcceptedFact   `json:"facts"`
}

// AnalysisService runs manuscript text through parsing, triple extraction and
// the project's knowledge graph.
type AnalysisService struct {
	parser    grammar.Parser
	registry  *graph.Registry
	entities  domain.EntityStore
	chunks    domain.ChunkStore
	embedder  domain.EmbeddingClient
	insight   *InsightService
	summaries *SummaryService
	logger    *zap.Logger
}

func NewAnalysisService(
	parser grammar.Parser,
	registry *graph.Registry,
	es domain.EntityStore,
	cs domain.ChunkStore,
	embedder domain.EmbeddingClient,
	insight *InsightService,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		parser:   parser,
		registry: registry,
		entities: es,
		chunks:   cs,
		embedder: embedder,
		insight:  insight,
		logger:   logger,
	}
}

// SetSummaries turns on character summary refreshes after each analysis.
func (s *AnalysisService) SetSummaries(summaries *SummaryService) {
	s.summaries = summaries
}

// Analyze parses text, stores it as the project's next narrative chunk, and
// ingests its triples into the project graph. Contradicting triples come back
// as conflicts and, when an explainer is configured, as alerts.
//
// Parser errors abort before anything is written. On a graph persistence
// error the partial result is returned with it: facts accepted before the
// failure stay, and the project is reloaded from the store on next use.
//
// Up to five characters seen in the text then get their summaries refreshed.
func (s *AnalysisService) Analyze(ctx context.Context, projectID uuid.UUID, text string) (*AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrTextEmpty
	}

	doc, err := s.parser.Parse(ctx, text)
	if err != nil {
		return nil, err
	}

	triples, err := extract.ExtractDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract triples: %w", err)
	}
	named := extract.NamedEntities(doc)

	result := &AnalysisResult{
		ProjectID: projectID,
		Actions:   triples,
	}

	chunk, warnings, err := s.saveChunk(ctx, projectID, text)
	if err != nil {
		return nil, err
	}
	result.ChunkID = chunk.ID
	result.Warnings = append(result.Warnings, warnings...)
	result.Context, warnings = s.similarContext(ctx, projectID, chunk)
	result.Warnings = append(result.Warnings, warnings...)

	var characters []uuid.UUID
	err = s.registry.WithProject(ctx, projectID, func(ctx context.Context, g *graph.Engine) error {
		for _, ne := range named {
			id, err := g.EnsureEntity(ctx, ne.Name, ne.Kind)
			if err != nil {
				return err
			}
			kind, _ := g.Kind(ne.Name)
			result.Entities = append(result.Entities, DetectedEntity{ID: id, Name: ne.Name, Label: ne.Label, Kind: kind})
		}

		_, err := g.IngestTriples(ctx, triples, "")
		result.Conflicts = g.Conflicts().Drain()
		result.Graph = g.Stats()
		characters = charactersIn(g, result.Entities, triples)
		return err
	})
	if err != nil {
		var perr *graph.PersistenceError
		if !errors.As(err, &perr) {
			return nil, err
		}
		// The store may hold a write whose reply was lost.
		s.registry.Invalidate(projectID)
		s.logger.Error("analysis stopped on a store failure",
			zap.String("project_id", projectID.String()),
			zap.Int("conflicts", len(result.Conflicts)),
			zap.Error(err),
		)
		return result, err
	}

	if len(result.Conflicts) > 0 && s.insight != nil {
		alerts, err := s.insight.ProcessPending(ctx, projectID)
		if err != nil {
			s.logger.Warn("conflict explanation failed", zap.String("project_id", projectID.String()), zap.Error(err))
			result.Warnings = append(result.Warnings, domain.Warning{Stage: StageExplain, Message: err.Error()})
		}
		result.Alerts = alerts
	}

	if s.summaries != nil && len(characters) > 0 {
		result.Warnings = append(result.Warnings, s.summaries.RefreshMany(ctx, projectID, characters)...)
	}

	s.logger.Info("text analyzed",
		zap.String("project_id", projectID.String()),
		zap.Int("entities", len(result.Entities)),
		zap.Int("triples", len(triples)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

// charactersIn lists the distinct CHARACTER entities named in the text or
// used by its triples, in order of appearance, capped at maxSummaryRefreshes.
func charactersIn(g *graph.Engine, detected []DetectedEntity, triples []domain.Triple) []uuid.UUID {
	var names []string
	for _, d := range detected {
		names = append(names, d.Name)
	}
	for _, t := range triples {
		names = append(names, t.Subject, t.Object)
	}

	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, name := range names {
		if len(out) == maxSummaryRefreshes {
			break
		}
		if kind, _ := g.Kind(name); kind != domain.KindCharacter {
			continue
		}
		id, ok := g.EntityID(name)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// SaveDraft stores text as a narrative chunk without analyzing it.
func (s *AnalysisService) SaveDraft(ctx context.Context, projectID uuid.UUID, text string) (*domain.NarrativeChunk, []domain.Warning, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrTextEmpty
	}
	return s.saveChunk(ctx, projectID, text)
}

// saveChunk stores the chunk. Embedding is best effort: on failure the chunk
// is stored without one and a warning is returned.
func (s *AnalysisService) saveChunk(ctx context.Context, projectID uuid.UUID, text string) (*domain.NarrativeChunk, []domain.Warning, error) {
	chunk := &domain.NarrativeChunk{ProjectID: projectID, Content: text}

	var warnings []domain.Warning
	if s.embedder != nil {
		emb, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("failed to embed chunk", zap.String("project_id", projectID.String()), zap.Error(err))
			warnings = append(warnings, domain.Warning{Stage: StageEmbedding, Message: err.Error()})
		} else {
			chunk.Embedding = emb
		}
	}

	if err := s.chunks.Create(ctx, chunk); err != nil {
		return nil, warnings, fmt.Errorf("store narrative chunk: %w", err)
	}
	return chunk, warnings, nil
}

func (s *AnalysisService) similarContext(ctx context.Context, projectID uuid.UUID, chunk *domain.NarrativeChunk) ([]string, []domain.Warning) {
	if len(chunk.Embedding) == 0 {
		return nil, nil
	}

	similar, err := s.chunks.Similar(ctx, projectID, chunk.Embedding, similarChunkLimit+1)
	if err != nil {
		s.logger.Warn("failed to load similar chunks", zap.String("project_id", projectID.String()), zap.Error(err))
		return nil, []domain.Warning{{Stage: StageContext, Message: err.Error()}}
	}

	var out []string
	for _, c := range similar {
		if c.ID == chunk.ID || len(out) == similarChunkLimit {
			continue
		}
		out = append(out, c.Content)
	}
	return out, nil
}

// SeedEntities records the project's initial cast. Seeded entities keep a
// kind already stored for the same name.
func (s *AnalysisService) SeedEntities(ctx context.Context, projectID uuid.UUID, seeds []SeedEntity) ([]domain.Entity, error) {
	for _, seed := range seeds {
		if strings.TrimSpace(seed.Name) == "" {
			return nil, ErrEntityNameEmpty
		}
	}

	var out []domain.Entity
	err := s.registry.WithProject(ctx, projectID, func(ctx context.Context, g *graph.Engine) error {
		for _, seed := range seeds {
			e := &domain.Entity{
				ProjectID:      projectID,
				Name:           strings.TrimSpace(seed.Name),
				Kind:           domain.NormalizeKind(seed.Kind),
				Description:    seed.Description,
				IsInitialSetup: true,
			}
			if err := s.entities.Create(ctx, e); err != nil {
				return fmt.Errorf("seed entity %q: %w", e.Name, err)
			}
			g.RegisterEntity(*e)
			out = append(out, *e)
		}
		return nil
	})
	if err != nil {
		// Seeds stored before the failure are picked up on reload.
		s.registry.Invalidate(projectID)
		return nil, err
	}
	return out, nil
}

// UpdateEntityMetadata merges metadata into the entity's stored metadata.
func (s *AnalysisService) UpdateEntityMetadata(ctx context.Context, projectID, entityID uuid.UUID, metadata map[string]any) (*domain.Entity, error) {
	e, err := s.entities.UpdateMetadata(ctx, projectID, entityID, metadata)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("update entity metadata: %w", err)
	}
	return e, nil
}

func (s *AnalysisService) Entities(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error) {
	return s.entities.ListByProject(ctx, projectID)
}

// StoryBrain is the project's entities, its most recent chunks and the facts
// currently in its graph.
func (s *AnalysisService) StoryBrain(ctx context.Context, projectID uuid.UUID) (*StoryBrain, error) {
	entities, err := s.entities.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	chunks, err := s.chunks.ListRecent(ctx, projectID, recentChunkLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent chunks: %w", err)
	}
	facts, err := s.Facts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &StoryBrain{
		ProjectID:    projectID,
		Entities:     entities,
		RecentChunks: chunks,
		Facts:        facts,
	}, nil
}

func (s *AnalysisService) Facts(ctx context.Context, projectID uuid.UUID) ([]domain.AcceptedFact, error) {
	var facts []domain.AcceptedFact
	err := s.registry.WithProject(ctx, projectID, func(ctx context.Context, g *graph.Engine) error {
		facts = g.Facts()
		return nil
	})
	return facts, err
}

// ObjectsFor lists what subject is linked to via relation in the project graph.
func (s *AnalysisService) ObjectsFor(ctx context.Context, projectID uuid.UUID, subject, relation string) ([]string, error) {
	var objects []string
	err := s.registry.WithProject(ctx, projectID, func(ctx context.Context, g *graph.Engine) error {
		objects = g.ObjectsFor(subject, relation)
		return nil
	})
	return objects, err
}

// CheckFact reports whether asserting the fact would conflict, without writing it.
func (s *AnalysisService) CheckFact(ctx context.Context, projectID uuid.UUID, subject, relation, object string) (*domain.Conflict, error) {
	var c *domain.Conflict
	err := s.registry.WithProject(ctx, projectID, func(ctx context.Context, g *graph.Engine) error {
		c = g.CheckConflict(subject, relation, object)
		return nil
	})
	return c, err
}
