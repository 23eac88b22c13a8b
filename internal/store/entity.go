package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entityColumns = `id, project_id, name, entity_type, description, metadata, is_initial_setup, created_at, updated_at`

type EntityStore struct {
	db *pgxpool.Pool
}

func NewEntityStore(db *pgxpool.Pool) *EntityStore {
	return &EntityStore{db: db}
}

// Create inserts the entity. When the project already has an entity with that
// name the stored row wins: its id and kind are loaded into e. A seeded entity
// marks the row as initial setup and fills an empty description.
func (s *EntityStore) Create(ctx context.Context, e *domain.Entity) error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Kind = domain.NormalizeKind(e.Kind)

	return s.db.QueryRow(ctx,
		`INSERT INTO entities (project_id, name, entity_type, description, metadata, is_initial_setup)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (project_id, name) DO UPDATE
		 SET is_initial_setup = entities.is_initial_setup OR EXCLUDED.is_initial_setup,
		     description = CASE WHEN entities.description = '' THEN EXCLUDED.description ELSE entities.description END,
		     updated_at = CASE WHEN EXCLUDED.is_initial_setup THEN NOW() ELSE entities.updated_at END
		 RETURNING `+entityColumns,
		e.ProjectID, e.Name, e.Kind, e.Description, e.Metadata, e.IsInitialSetup,
	).Scan(&e.ID, &e.ProjectID, &e.Name, &e.Kind, &e.Description, &e.Metadata, &e.IsInitialSetup, &e.CreatedAt, &e.UpdatedAt)
}

func (s *EntityStore) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE project_id = $1 AND id = $2`,
		projectID, id,
	).Scan(&e.ID, &e.ProjectID, &e.Name, &e.Kind, &e.Description, &e.Metadata, &e.IsInitialSetup, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// FindByName matches the display name exactly.
func (s *EntityStore) FindByName(ctx context.Context, projectID uuid.UUID, name string) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE project_id = $1 AND name = $2`,
		projectID, name,
	).Scan(&e.ID, &e.ProjectID, &e.Name, &e.Kind, &e.Description, &e.Metadata, &e.IsInitialSetup, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EntityStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE project_id = $1 ORDER BY created_at, name`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &e.Kind, &e.Description, &e.Metadata, &e.IsInitialSetup, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// UpdateMetadata merges metadata into the stored JSON object.
func (s *EntityStore) UpdateMetadata(ctx context.Context, projectID, id uuid.UUID, metadata map[string]any) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.QueryRow(ctx,
		`UPDATE entities
		 SET metadata = metadata || $3::jsonb, updated_at = NOW()
		 WHERE project_id = $1 AND id = $2
		 RETURNING `+entityColumns,
		projectID, id, metadata,
	).Scan(&e.ID, &e.ProjectID, &e.Name, &e.Kind, &e.Description, &e.Metadata, &e.IsInitialSetup, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}
