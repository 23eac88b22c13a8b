package store

import (
	"context"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// ChunkStore persists narrative text blocks with their optional embeddings.
type ChunkStore struct {
	db *pgxpool.Pool
}

func NewChunkStore(db *pgxpool.Pool) *ChunkStore {
	return &ChunkStore{db: db}
}

// Create appends the chunk at the project's next chunk index, starting at 1.
func (s *ChunkStore) Create(ctx context.Context, c *domain.NarrativeChunk) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO narrative_chunks (project_id, content, chunk_index, embedding)
		 SELECT $1, $2, COALESCE(MAX(chunk_index), 0) + 1, $3
		 FROM narrative_chunks WHERE project_id = $1
		 RETURNING id, chunk_index, created_at`,
		c.ProjectID, c.Content, embedding,
	).Scan(&c.ID, &c.ChunkIndex, &c.CreatedAt)
}

// ListRecent returns the newest chunks first.
func (s *ChunkStore) ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.NarrativeChunk, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, content, chunk_index, created_at
		 FROM narrative_chunks WHERE project_id = $1
		 ORDER BY chunk_index DESC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.NarrativeChunk
	for rows.Next() {
		var c domain.NarrativeChunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Content, &c.ChunkIndex, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Similar returns the project's chunks closest to embedding by cosine distance.
func (s *ChunkStore) Similar(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]domain.NarrativeChunk, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, content, chunk_index, created_at
		 FROM narrative_chunks
		 WHERE project_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		projectID, vec, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.NarrativeChunk
	for rows.Next() {
		var c domain.NarrativeChunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Content, &c.ChunkIndex, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
