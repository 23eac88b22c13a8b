package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/graph"
	"github.com/Harshitk-cp/storybrain/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	summaryExcerptLimit   = 10
	characterExcerptQuery = "Story events, actions, and descriptions involving the character "
	// maxSummaryRefreshes caps how many characters one analysis refreshes.
	maxSummaryRefreshes = 5
)

var (
	ErrNotCharacter          = errors.New("entity not found or is not a CHARACTER")
	ErrSummarizerUnavailable = errors.New("summarizer not configured")
)

// SummaryService keeps each character's persona and story-so-far summaries
// current in its entity metadata.
type SummaryService struct {
	entities   domain.EntityStore
	chunks     domain.ChunkStore
	embedder   domain.EmbeddingClient
	registry   *graph.Registry
	summarizer domain.Summarizer
	logger     *zap.Logger

	now func() time.Time
}

func NewSummaryService(
	es domain.EntityStore,
	cs domain.ChunkStore,
	embedder domain.EmbeddingClient,
	registry *graph.Registry,
	summarizer domain.Summarizer,
	logger *zap.Logger,
) *SummaryService {
	return &SummaryService{
		entities:   es,
		chunks:     cs,
		embedder:   embedder,
		registry:   registry,
		summarizer: summarizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Refresh rebuilds the summaries of one CHARACTER entity from its graph facts
// and the narrative that mentions it, and merges them into its metadata.
func (s *SummaryService) Refresh(ctx context.Context, projectID, entityID uuid.UUID) (*domain.Entity, error) {
	if s.summarizer == nil {
		return nil, ErrSummarizerUnavailable
	}

	ent, err := s.entities.GetByID(ctx, projectID, entityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotCharacter
		}
		return nil, fmt.Errorf("load entity: %w", err)
	}
	if ent.Kind != domain.KindCharacter {
		return nil, ErrNotCharacter
	}

	facts, err := s.factLines(ctx, projectID, ent.Name)
	if err != nil {
		return nil, err
	}
	excerpts, err := s.excerpts(ctx, projectID, ent.Name)
	if err != nil {
		return nil, err
	}

	sum, err := s.summarizer.SummarizeCharacter(ctx, domain.CharacterDossier{
		Name:     ent.Name,
		Facts:    facts,
		Excerpts: excerpts,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize %q: %w", ent.Name, err)
	}

	updated, err := s.entities.UpdateMetadata(ctx, projectID, entityID, map[string]any{
		domain.MetaPersonaSummary:   sum.Persona,
		domain.MetaStorySummary:     sum.Story,
		domain.MetaSummaryUpdatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("store summaries: %w", err)
	}

	s.logger.Info("character summary refreshed",
		zap.String("project_id", projectID.String()),
		zap.String("entity", ent.Name),
		zap.Int("facts", len(facts)),
		zap.Int("excerpts", len(excerpts)),
	)
	return updated, nil
}

// RefreshMany refreshes each character in turn. Failures are reported as
// warnings and do not stop the others.
func (s *SummaryService) RefreshMany(ctx context.Context, projectID uuid.UUID, entityIDs []uuid.UUID) []domain.Warning {
	var warnings []domain.Warning
	for _, id := range entityIDs {
		if _, err := s.Refresh(ctx, projectID, id); err != nil {
			s.logger.Warn("character summary refresh failed",
				zap.String("project_id", projectID.String()),
				zap.String("entity_id", id.String()),
				zap.Error(err),
			)
			warnings = append(warnings, domain.Warning{Stage: StageSummary, Message: err.Error()})
		}
	}
	return warnings
}

// factLines renders every fact touching name, in either direction.
func (s *SummaryService) factLines(ctx context.Context, projectID uuid.UUID, name string) ([]string, error) {
	var lines []string
	err := s.registry.WithProject(ctx, projectID, func(ctx context.Context, g *graph.Engine) error {
		for _, f := range g.Facts() {
			if f.Subject != name && f.Object != name {
				continue
			}
			line := f.Subject + " -- " + f.Relation + " --> " + f.Object
			if f.Description != "" {
				line += " (" + f.Description + ")"
			}
			lines = append(lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	return lines, nil
}

// excerpts prefers chunks similar to a query about the character. Without
// embeddings it falls back to recent chunks that mention the name.
func (s *SummaryService) excerpts(ctx context.Context, projectID uuid.UUID, name string) ([]string, error) {
	if s.embedder != nil {
		emb, err := s.embedder.Embed(ctx, characterExcerptQuery+name+".")
		if err == nil {
			similar, err := s.chunks.Similar(ctx, projectID, emb, summaryExcerptLimit)
			if err == nil {
				return chunkContents(similar), nil
			}
			s.logger.Warn("similar chunk search failed", zap.String("project_id", projectID.String()), zap.Error(err))
		} else {
			s.logger.Warn("failed to embed summary query", zap.String("project_id", projectID.String()), zap.Error(err))
		}
	}

	recent, err := s.chunks.ListRecent(ctx, projectID, recentChunkLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent chunks: %w", err)
	}
	var mentions []domain.NarrativeChunk
	for _, c := range recent {
		if strings.Contains(c.Content, name) {
			mentions = append(mentions, c)
		}
	}
	return chunkContents(mentions), nil
}

func chunkContents(chunks []domain.NarrativeChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}
