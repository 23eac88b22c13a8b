package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EntityStore interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Entity, error)
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*Entity, error)
	FindByName(ctx context.Context, projectID uuid.UUID, name string) (*Entity, error)
	// Create inserts the entity, or loads the existing row when the name is already taken.
	Create(ctx context.Context, e *Entity) error
	UpdateMetadata(ctx context.Context, projectID, id uuid.UUID, metadata map[string]any) (*Entity, error)
}

type FactStore interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Fact, error)
	// Create is a no-op when the same subject, object and relation are already stored.
	Create(ctx context.Context, f *Fact) error
}

type ConflictLogStore interface {
	Create(ctx context.Context, l *ConflictLog) error
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*ConflictLog, error)
	ListPending(ctx context.Context, projectID uuid.UUID, limit int) ([]ConflictLog, error)
	// ClaimUnexplained marks up to limit unexplained pending logs as taken and
	// returns them, oldest first. A claim older than lease can be taken again.
	ClaimUnexplained(ctx context.Context, projectID uuid.UUID, limit int, lease time.Duration) ([]ConflictLog, error)
	ReleaseClaim(ctx context.Context, id uuid.UUID) error
	SetAlert(ctx context.Context, id uuid.UUID, alert string) error
	UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status ConflictStatus) error
	ListProjectsWithUnexplained(ctx context.Context) ([]uuid.UUID, error)
}

type ChunkStore interface {
	Create(ctx context.Context, c *NarrativeChunk) error
	ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]NarrativeChunk, error)
	Similar(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]NarrativeChunk, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Explainer turns a structured conflict into a short author-facing alert.
type Explainer interface {
	ExplainConflict(ctx context.Context, c Conflict, maxWords int) (string, error)
}

// Summarizer writes a character's persona and story-so-far summaries.
type Summarizer interface {
	SummarizeCharacter(ctx context.Context, d CharacterDossier) (CharacterSummary, error)
}

// LLMClient is a model provider serving both alerts and summaries.
type LLMClient interface {
	Explainer
	Summarizer
}
