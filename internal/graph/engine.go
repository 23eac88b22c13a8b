// Package graph holds the per-project story knowledge graph: entities as nodes,
// facts as relation-labeled edges, and the log of facts rejected because they
// contradict what the graph already records.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stores are the persistence collaborators of an engine. Any nil store turns
// the matching persistence step off; an engine with no stores is purely in memory.
type Stores struct {
	Entities  domain.EntityStore
	Facts     domain.FactStore
	Conflicts domain.ConflictLogStore
}

// FactListener is told about every fact the engine accepts. Listener failures
// are logged and never undo the fact.
type FactListener interface {
	FactAccepted(ctx context.Context, fact domain.AcceptedFact) error
}

// PersistenceError reports a failed store call during UpsertFact or IngestTriples.
// Facts committed before the failure stay in the graph.
type PersistenceError struct {
	Op       string
	Subject  string
	Relation string
	Object   string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s (%s, %s, %s): %v", e.Op, e.Subject, e.Relation, e.Object, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var ErrNoStore = errors.New("engine has no entity or fact store")

type edge struct {
	target      string
	relation    string
	description string
	createdAt   time.Time
}

type node struct {
	name string
	kind domain.EntityKind
	out  []edge
}

// Engine is the knowledge graph of one project. It is not safe for concurrent
// use; Registry hands it to one caller at a time.
type Engine struct {
	projectID uuid.UUID
	stores    Stores
	listeners []FactListener
	logger    *zap.Logger
	now       func() time.Time

	nodes     map[string]*node
	order     []string
	ids       map[string]uuid.UUID
	conflicts *ConflictQueue
}

func NewEngine(projectID uuid.UUID, stores Stores, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		projectID: projectID,
		stores:    stores,
		logger:    logger.With(zap.String("project_id", projectID.String())),
		now:       time.Now,
		nodes:     make(map[string]*node),
		ids:       make(map[string]uuid.UUID),
		conflicts: NewConflictQueue(),
	}
}

func (e *Engine) ProjectID() uuid.UUID {
	return e.projectID
}

func (e *Engine) AddListener(l FactListener) {
	if l != nil {
		e.listeners = append(e.listeners, l)
	}
}

// Conflicts is the queue of rejected facts not yet taken by a consumer. The
// queue only grows until it is drained; whoever ingests drains it.
func (e *Engine) Conflicts() *ConflictQueue {
	return e.conflicts
}

type LoadStats struct {
	Entities int `json:"entities"`
	Facts    int `json:"facts"`
	Skipped  int `json:"skipped"`
}

// Load hydrates the graph from stored entities and facts. Facts that reference
// an entity id missing from entities are skipped and logged.
func (e *Engine) Load(entities []domain.Entity, facts []domain.Fact) LoadStats {
	var stats LoadStats
	nameByID := make(map[uuid.UUID]string, len(entities))

	for _, ent := range entities {
		n := e.addNode(ent.Name)
		if ent.Kind != "" {
			n.kind = ent.Kind
		}
		e.ids[ent.Name] = ent.ID
		nameByID[ent.ID] = ent.Name
		stats.Entities++
	}

	for _, f := range facts {
		subject, okS := nameByID[f.SubjectID]
		object, okO := nameByID[f.ObjectID]
		if !okS || !okO {
			e.logger.Warn("skipping fact with unknown entity",
				zap.String("subject_id", f.SubjectID.String()),
				zap.String("object_id", f.ObjectID.String()),
				zap.String("relation", f.Relation),
			)
			stats.Skipped++
			continue
		}

		relation := domain.NormalizeRelation(f.Relation)
		if relation == "" {
			relation = domain.DefaultRelation
		}
		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = e.now()
		}
		if e.addEdge(subject, relation, object, f.Description, createdAt) {
			stats.Facts++
		}
	}

	return stats
}

// Hydrate fetches the project's entities and facts from the stores and loads them.
func (e *Engine) Hydrate(ctx context.Context) (LoadStats, error) {
	if e.stores.Entities == nil || e.stores.Facts == nil {
		return LoadStats{}, ErrNoStore
	}

	entities, err := e.stores.Entities.ListByProject(ctx, e.projectID)
	if err != nil {
		return LoadStats{}, fmt.Errorf("fetch entities: %w", err)
	}
	facts, err := e.stores.Facts.ListByProject(ctx, e.projectID)
	if err != nil {
		return LoadStats{}, fmt.Errorf("fetch facts: %w", err)
	}

	stats := e.Load(entities, facts)
	e.logger.Info("graph hydrated",
		zap.Int("entities", stats.Entities),
		zap.Int("facts", stats.Facts),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// AddEntity adds a node. An existing node is left alone except that a kind is
// attached when it had none.
func (e *Engine) AddEntity(name string, kind domain.EntityKind) {
	n := e.addNode(name)
	if n.kind == "" && kind != "" {
		n.kind = domain.NormalizeKind(kind)
	}
}

// EnsureEntity resolves name to its stable id, creating the entity (and its
// stored row) with kind, or OBJECT when kind is not a story kind.
func (e *Engine) EnsureEntity(ctx context.Context, name string, kind domain.EntityKind) (uuid.UUID, error) {
	kind = domain.NormalizeKind(kind)
	if id, ok := e.ids[name]; ok {
		e.AddEntity(name, kind)
		return id, nil
	}

	if e.stores.Entities == nil {
		id := uuid.New()
		e.ids[name] = id
		e.AddEntity(name, kind)
		return id, nil
	}

	ent := &domain.Entity{
		ProjectID: e.projectID,
		Name:      name,
		Kind:      kind,
	}
	if err := e.stores.Entities.Create(ctx, ent); err != nil {
		return uuid.Nil, fmt.Errorf("create entity %q: %w", name, err)
	}
	e.ids[name] = ent.ID
	e.AddEntity(name, ent.Kind)
	return ent.ID, nil
}

// RegisterEntity records an entity that was stored outside the engine.
func (e *Engine) RegisterEntity(ent domain.Entity) {
	n := e.addNode(ent.Name)
	if ent.Kind != "" {
		n.kind = ent.Kind
	}
	if ent.ID != uuid.Nil {
		e.ids[ent.Name] = ent.ID
	}
}

func (e *Engine) Kind(name string) (domain.EntityKind, bool) {
	n, ok := e.nodes[name]
	if !ok {
		return "", false
	}
	return n.kind, true
}

func (e *Engine) EntityID(name string) (uuid.UUID, bool) {
	id, ok := e.ids[name]
	return id, ok
}

// ObjectsFor returns the distinct objects linked from subject via relation, in
// insertion order.
func (e *Engine) ObjectsFor(subject, relation string) []string {
	n, ok := e.nodes[subject]
	if !ok {
		return nil
	}
	relation = domain.NormalizeRelation(relation)

	var objects []string
	seen := make(map[string]bool)
	for _, ed := range n.out {
		if ed.relation != relation || seen[ed.target] {
			continue
		}
		seen[ed.target] = true
		objects = append(objects, ed.target)
	}
	return objects
}

// CheckConflict returns nil when subject+relation has no facts yet or already
// points at object; otherwise a Conflict carrying every prior object.
func (e *Engine) CheckConflict(subject, relation, object string) *domain.Conflict {
	relation = domain.NormalizeRelation(relation)
	existing := e.ObjectsFor(subject, relation)
	if len(existing) == 0 || contains(existing, object) {
		return nil
	}
	return domain.NewConflict(subject, relation, object, existing, "")
}

// UpsertFact adds the fact unless it contradicts the graph. A contradiction is
// not written: it is queued on the conflict log, persisted as a pending
// consistency log and returned. Re-asserting a known fact changes nothing.
//
// A cancelled ctx stops the call before any mutation. The fact row is stored
// before the edge is added, so a PersistenceError leaves this fact out of the graph.
func (e *Engine) UpsertFact(ctx context.Context, subject, relation, object, sourceText string) (*domain.Conflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	relation = domain.NormalizeRelation(relation)
	existing := e.ObjectsFor(subject, relation)

	if len(existing) > 0 && !contains(existing, object) {
		c := domain.NewConflict(subject, relation, object, existing, sourceText)
		e.conflicts.Append(*c)
		e.logger.Info("fact rejected as inconsistent",
			zap.String("subject", subject),
			zap.String("relation", relation),
			zap.String("object", object),
			zap.Strings("existing", existing),
		)
		if err := e.persistConflict(ctx, c); err != nil {
			return c, &PersistenceError{Op: "insert consistency log", Subject: subject, Relation: relation, Object: object, Err: err}
		}
		return c, nil
	}

	if len(existing) > 0 {
		return nil, nil
	}

	if err := e.persistFact(ctx, subject, relation, object, sourceText); err != nil {
		return nil, &PersistenceError{Op: "insert fact", Subject: subject, Relation: relation, Object: object, Err: err}
	}

	now := e.now()
	e.addNode(subject)
	e.addNode(object)
	e.addEdge(subject, relation, object, sourceText, now)

	e.notify(ctx, domain.AcceptedFact{
		ProjectID:   e.projectID,
		Subject:     subject,
		SubjectKind: e.nodes[subject].kind,
		Relation:    relation,
		Object:      object,
		ObjectKind:  e.nodes[object].kind,
		Description: sourceText,
		CreatedAt:   now,
	})
	return nil, nil
}

// IngestTriples upserts every triple in order and returns the conflicts found.
// A triple is checked against the graph as left by the triples before it. Each
// accepted triple is committed on its own; on error the conflicts gathered so
// far are returned with it and the remaining triples are not processed.
// sourceText, when set, replaces each triple's own sentence as the fact description.
func (e *Engine) IngestTriples(ctx context.Context, triples []domain.Triple, sourceText string) ([]domain.Conflict, error) {
	var conflicts []domain.Conflict
	for _, t := range triples {
		src := sourceText
		if src == "" {
			src = t.Sentence
		}
		c, err := e.UpsertFact(ctx, t.Subject, t.Relation, t.Object, src)
		if c != nil {
			conflicts = append(conflicts, *c)
		}
		if err != nil {
			return conflicts, err
		}
	}
	return conflicts, nil
}

// Stats counts nodes and distinct edges.
func (e *Engine) Stats() LoadStats {
	s := LoadStats{Entities: len(e.nodes)}
	for _, n := range e.nodes {
		s.Facts += len(n.out)
	}
	return s
}

// Facts lists every edge, subjects in first-seen order and edges in insertion order.
func (e *Engine) Facts() []domain.AcceptedFact {
	var out []domain.AcceptedFact
	for _, name := range e.order {
		n := e.nodes[name]
		for _, ed := range n.out {
			out = append(out, domain.AcceptedFact{
				ProjectID:   e.projectID,
				Subject:     n.name,
				SubjectKind: n.kind,
				Relation:    ed.relation,
				Object:      ed.target,
				ObjectKind:  e.nodes[ed.target].kind,
				Description: ed.description,
				CreatedAt:   ed.createdAt,
			})
		}
	}
	return out
}

func (e *Engine) addNode(name string) *node {
	if n, ok := e.nodes[name]; ok {
		return n
	}
	n := &node{name: name}
	e.nodes[name] = n
	e.order = append(e.order, name)
	return n
}

// addEdge adds subject -relation-> object unless that exact edge exists.
func (e *Engine) addEdge(subject, relation, object, description string, at time.Time) bool {
	s := e.addNode(subject)
	e.addNode(object)
	for _, ed := range s.out {
		if ed.relation == relation && ed.target == object {
			return false
		}
	}
	s.out = append(s.out, edge{target: object, relation: relation, description: description, createdAt: at})
	return true
}

func (e *Engine) kindOrObject(name string) domain.EntityKind {
	if n, ok := e.nodes[name]; ok && n.kind != "" {
		return n.kind
	}
	return domain.KindObject
}

func (e *Engine) persistFact(ctx context.Context, subject, relation, object, description string) error {
	if e.stores.Facts == nil {
		return nil
	}

	subjectID, err := e.EnsureEntity(ctx, subject, e.kindOrObject(subject))
	if err != nil {
		return err
	}
	objectID, err := e.EnsureEntity(ctx, object, e.kindOrObject(object))
	if err != nil {
		return err
	}

	return e.stores.Facts.Create(ctx, &domain.Fact{
		ProjectID:   e.projectID,
		SubjectID:   subjectID,
		ObjectID:    objectID,
		Relation:    relation,
		Description: description,
	})
}

func (e *Engine) persistConflict(ctx context.Context, c *domain.Conflict) error {
	if e.stores.Conflicts == nil {
		return nil
	}

	var involved []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, name := range append([]string{c.Subject, c.Object}, c.ExistingObjects...) {
		id, ok := e.ids[name]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		involved = append(involved, id)
	}

	return e.stores.Conflicts.Create(ctx, &domain.ConflictLog{
		ProjectID:         e.projectID,
		IssueType:         domain.IssueInconsistency,
		Severity:          domain.SeverityMedium,
		Subject:           c.Subject,
		Relation:          c.Relation,
		Object:            c.Object,
		ExistingObjects:   c.ExistingObjects,
		OriginalText:      c.SourceText,
		Explanation:       c.Message,
		SuggestedFix:      c.SuggestedFix(),
		Status:            domain.StatusPending,
		InvolvedEntityIDs: involved,
	})
}

// Replay hands every fact already in the graph to the listeners, so a listener
// attached to a hydrated engine starts from the same state. It returns the
// number of facts replayed.
func (e *Engine) Replay(ctx context.Context) int {
	if len(e.listeners) == 0 {
		return 0
	}
	facts := e.Facts()
	for _, f := range facts {
		if ctx.Err() != nil {
			return 0
		}
		e.notify(ctx, f)
	}
	return len(facts)
}

func (e *Engine) notify(ctx context.Context, fact domain.AcceptedFact) {
	for _, l := range e.listeners {
		if err := l.FactAccepted(ctx, fact); err != nil {
			e.logger.Warn("fact listener failed",
				zap.String("subject", fact.Subject),
				zap.String("relation", fact.Relation),
				zap.String("object", fact.Object),
				zap.Error(err),
			)
		}
	}
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
