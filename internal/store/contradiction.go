package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conflictColumns = `id, project_id, issue_type, severity, subject, relation, object, existing_objects,
	original_text, explanation, suggested_fix, status, involved_entity_ids, explained_at, created_at`

// ConflictLogStore persists rejected facts in consistency_logs.
type ConflictLogStore struct {
	db *pgxpool.Pool
}

func NewConflictLogStore(db *pgxpool.Pool) *ConflictLogStore {
	return &ConflictLogStore{db: db}
}

func scanConflictLog(row pgx.Row, l *domain.ConflictLog) error {
	return row.Scan(&l.ID, &l.ProjectID, &l.IssueType, &l.Severity, &l.Subject, &l.Relation, &l.Object,
		&l.ExistingObjects, &l.OriginalText, &l.Explanation, &l.SuggestedFix, &l.Status,
		&l.InvolvedEntityIDs, &l.ExplainedAt, &l.CreatedAt)
}

func (s *ConflictLogStore) Create(ctx context.Context, l *domain.ConflictLog) error {
	if l.IssueType == "" {
		l.IssueType = domain.IssueInconsistency
	}
	if l.Severity == "" {
		l.Severity = domain.SeverityMedium
	}
	if l.Status == "" {
		l.Status = domain.StatusPending
	}
	if l.ExistingObjects == nil {
		l.ExistingObjects = []string{}
	}
	if l.InvolvedEntityIDs == nil {
		l.InvolvedEntityIDs = []uuid.UUID{}
	}
	if l.SuggestedFix == "" {
		c := l.Conflict()
		l.SuggestedFix = c.SuggestedFix()
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO consistency_logs (project_id, issue_type, severity, subject, relation, object, existing_objects,
		                               original_text, explanation, suggested_fix, status, involved_entity_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		l.ProjectID, l.IssueType, l.Severity, l.Subject, l.Relation, l.Object, l.ExistingObjects,
		l.OriginalText, l.Explanation, l.SuggestedFix, l.Status, l.InvolvedEntityIDs,
	).Scan(&l.ID, &l.CreatedAt)
}

func (s *ConflictLogStore) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.ConflictLog, error) {
	l := &domain.ConflictLog{}
	err := scanConflictLog(s.db.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM consistency_logs WHERE project_id = $1 AND id = $2`,
		projectID, id,
	), l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListPending returns the project's pending logs, oldest first.
func (s *ConflictLogStore) ListPending(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.ConflictLog, error) {
	return s.list(ctx,
		`SELECT `+conflictColumns+` FROM consistency_logs
		 WHERE project_id = $1 AND status = 'PENDING'
		 ORDER BY created_at, id LIMIT $2`,
		projectID, limit,
	)
}

// ClaimUnexplained stamps claimed_at on up to limit pending logs the explainer
// has not handled and returns them, oldest first. Rows locked by a concurrent
// claim are skipped, and a claim older than lease is treated as abandoned.
func (s *ConflictLogStore) ClaimUnexplained(ctx context.Context, projectID uuid.UUID, limit int, lease time.Duration) ([]domain.ConflictLog, error) {
	logs, err := s.list(ctx,
		`UPDATE consistency_logs SET claimed_at = NOW()
		 WHERE id IN (
		     SELECT id FROM consistency_logs
		     WHERE project_id = $1 AND status = 'PENDING' AND explained_at IS NULL
		       AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $3))
		     ORDER BY created_at, id LIMIT $2
		     FOR UPDATE SKIP LOCKED)
		 RETURNING `+conflictColumns,
		projectID, limit, lease.Seconds(),
	)
	if err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID.String() < logs[j].ID.String()
		}
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})
	return logs, nil
}

// ReleaseClaim makes a claimed log available again.
func (s *ConflictLogStore) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE consistency_logs SET claimed_at = NULL WHERE id = $1`, id)
	return err
}

func (s *ConflictLogStore) list(ctx context.Context, query string, args ...any) ([]domain.ConflictLog, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.ConflictLog
	for rows.Next() {
		var l domain.ConflictLog
		if err := scanConflictLog(rows, &l); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SetAlert stores the explainer's alert as the log's suggested fix.
func (s *ConflictLogStore) SetAlert(ctx context.Context, id uuid.UUID, alert string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE consistency_logs SET suggested_fix = $2, explained_at = NOW() WHERE id = $1`,
		id, alert,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ConflictLogStore) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status domain.ConflictStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE consistency_logs SET status = $3 WHERE project_id = $1 AND id = $2`,
		projectID, id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ConflictLogStore) ListProjectsWithUnexplained(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT project_id FROM consistency_logs
		 WHERE status = 'PENDING' AND explained_at IS NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
