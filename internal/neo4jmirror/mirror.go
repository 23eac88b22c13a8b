// Package neo4jmirror copies accepted story facts into a Neo4j graph so they
// can be browsed with Cypher tooling. Postgres stays the source of truth.
package neo4jmirror

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Executor runs one Cypher statement.
type Executor interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
}

type Driver struct {
	driver neo4j.DriverWithContext
}

// Connect opens a driver and verifies the server is reachable.
func Connect(ctx context.Context, uri, username, password string) (*Driver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Driver{driver: driver}, nil
}

func (d *Driver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("execute query: %w", err)
	}
	return *result, nil
}

func (d *Driver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

const schemaQuery = `CREATE CONSTRAINT story_entity_key IF NOT EXISTS
FOR (n:StoryEntity) REQUIRE (n.project_id, n.name) IS UNIQUE`

const mergeFactQuery = `MERGE (s:StoryEntity {project_id: $project_id, name: $subject})
  ON CREATE SET s.kind = $subject_kind
MERGE (o:StoryEntity {project_id: $project_id, name: $object})
  ON CREATE SET o.kind = $object_kind
MERGE (s)-[r:FACT {relation: $relation}]->(o)
  ON CREATE SET r.description = $description, r.created_at = $created_at`

// Mirror is a graph.FactListener writing to Neo4j.
type Mirror struct {
	exec   Executor
	logger *zap.Logger
}

func New(exec Executor, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{exec: exec, logger: logger}
}

func (m *Mirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.exec.ExecuteQuery(ctx, schemaQuery, nil); err != nil {
		return fmt.Errorf("create story entity constraint: %w", err)
	}
	return nil
}

func (m *Mirror) FactAccepted(ctx context.Context, fact domain.AcceptedFact) error {
	createdAt := fact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	params := map[string]any{
		"project_id":   fact.ProjectID.String(),
		"subject":      fact.Subject,
		"subject_kind": kindParam(fact.SubjectKind),
		"object":       fact.Object,
		"object_kind":  kindParam(fact.ObjectKind),
		"relation":     fact.Relation,
		"description":  fact.Description,
		"created_at":   createdAt.UTC(),
	}
	if _, err := m.exec.ExecuteQuery(ctx, mergeFactQuery, params); err != nil {
		return fmt.Errorf("mirror fact: %w", err)
	}
	m.logger.Debug("fact mirrored",
		zap.String("subject", fact.Subject),
		zap.String("relation", fact.Relation),
		zap.String("object", fact.Object),
	)
	return nil
}

func kindParam(k domain.EntityKind) any {
	if k == "" {
		return nil
	}
	return string(k)
}
