package store

import (
	"context"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FactStore persists graph edges in the relationships table.
type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

// Create stores the fact. When the same subject, object and relation are
// already stored, f is filled from the existing row.
func (s *FactStore) Create(ctx context.Context, f *domain.Fact) error {
	f.Relation = domain.NormalizeRelation(f.Relation)
	return s.db.QueryRow(ctx,
		`INSERT INTO relationships (project_id, entity_a_id, entity_b_id, relation_type, description)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, entity_a_id, entity_b_id, relation_type) DO UPDATE
		 SET description = relationships.description
		 RETURNING id, description, created_at`,
		f.ProjectID, f.SubjectID, f.ObjectID, f.Relation, f.Description,
	).Scan(&f.ID, &f.Description, &f.CreatedAt)
}

// ListByProject returns the project's facts oldest first, the order the graph
// replays them in.
func (s *FactStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Fact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, entity_a_id, entity_b_id, relation_type, description, created_at
		 FROM relationships WHERE project_id = $1
		 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.SubjectID, &f.ObjectID, &f.Relation, &f.Description, &f.CreatedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
