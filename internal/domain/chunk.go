package domain

import (
	"time"

	"github.com/google/uuid"
)

// NarrativeChunk is one block of manuscript text saved for a project.
type NarrativeChunk struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"project_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Warning reports a best-effort step that failed without blocking the primary write.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
