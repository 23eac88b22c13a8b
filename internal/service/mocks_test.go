package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/grammar"
	"github.com/Harshitk-cp/storybrain/internal/store"
	"github.com/google/uuid"
)

// mockEntityStore implements domain.EntityStore for testing.
type mockEntityStore struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*domain.Entity
	err      error
}

func newMockEntityStore() *mockEntityStore {
	return &mockEntityStore{entities: make(map[uuid.UUID]*domain.Entity)}
}

func (m *mockEntityStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Entity
	for _, e := range m.entities {
		if e.ProjectID == projectID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockEntityStore) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok || e.ProjectID != projectID {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockEntityStore) FindByName(ctx context.Context, projectID uuid.UUID, name string) (*domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.ProjectID == projectID && e.Name == name {
			cp := *e
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockEntityStore) Create(ctx context.Context, e *domain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.entities {
		if existing.ProjectID == e.ProjectID && existing.Name == e.Name {
			existing.IsInitialSetup = existing.IsInitialSetup || e.IsInitialSetup
			if existing.Description == "" {
				existing.Description = e.Description
			}
			*e = *existing
			return nil
		}
	}
	e.ID = uuid.New()
	e.Kind = domain.NormalizeKind(e.Kind)
	e.CreatedAt = time.Now()
	cp := *e
	m.entities[e.ID] = &cp
	return nil
}

func (m *mockEntityStore) UpdateMetadata(ctx context.Context, projectID, id uuid.UUID, metadata map[string]any) (*domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok || e.ProjectID != projectID {
		return nil, store.ErrNotFound
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	for k, v := range metadata {
		e.Metadata[k] = v
	}
	cp := *e
	return &cp, nil
}

// mockFactStore implements domain.FactStore for testing.
type mockFactStore struct {
	mu    sync.Mutex
	facts []domain.Fact
	err   error
}

func (m *mockFactStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Fact
	for _, f := range m.facts {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFactStore) Create(ctx context.Context, f *domain.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	m.facts = append(m.facts, *f)
	return nil
}

// mockConflictStore implements domain.ConflictLogStore for testing.
type mockConflictStore struct {
	mu        sync.Mutex
	logs      []*domain.ConflictLog
	claimedAt map[uuid.UUID]time.Time
	alertErr  error
	listErr   error
	alertsSet int
}

func (m *mockConflictStore) Create(ctx context.Context, l *domain.ConflictLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *mockConflictStore) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.ConflictLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ID == id && l.ProjectID == projectID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockConflictStore) ListPending(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.ConflictLog, error) {
	return m.filter(projectID, limit, func(l *domain.ConflictLog) bool {
		return l.Status == domain.StatusPending
	})
}

func (m *mockConflictStore) ClaimUnexplained(ctx context.Context, projectID uuid.UUID, limit int, lease time.Duration) ([]domain.ConflictLog, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimedAt == nil {
		m.claimedAt = make(map[uuid.UUID]time.Time)
	}
	now := time.Now()
	var out []domain.ConflictLog
	for _, l := range m.logs {
		if l.ProjectID != projectID || l.Status != domain.StatusPending || l.ExplainedAt != nil {
			continue
		}
		if at, ok := m.claimedAt[l.ID]; ok && now.Sub(at) < lease {
			continue
		}
		m.claimedAt[l.ID] = now
		out = append(out, *l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockConflictStore) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimedAt, id)
	return nil
}

func (m *mockConflictStore) filter(projectID uuid.UUID, limit int, keep func(*domain.ConflictLog) bool) ([]domain.ConflictLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConflictLog
	for _, l := range m.logs {
		if l.ProjectID != projectID || !keep(l) {
			continue
		}
		out = append(out, *l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockConflictStore) SetAlert(ctx context.Context, id uuid.UUID, alert string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alertErr != nil {
		return m.alertErr
	}
	for _, l := range m.logs {
		if l.ID == id {
			now := time.Now()
			l.SuggestedFix = alert
			l.ExplainedAt = &now
			m.alertsSet++
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockConflictStore) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status domain.ConflictStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ID == id && l.ProjectID == projectID {
			l.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockConflictStore) ListProjectsWithUnexplained(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, l := range m.logs {
		if l.Status == domain.StatusPending && l.ExplainedAt == nil && !seen[l.ProjectID] {
			seen[l.ProjectID] = true
			out = append(out, l.ProjectID)
		}
	}
	return out, nil
}

// mockChunkStore implements domain.ChunkStore for testing.
type mockChunkStore struct {
	mu         sync.Mutex
	chunks     []domain.NarrativeChunk
	err        error
	similarErr error
}

func (m *mockChunkStore) Create(ctx context.Context, c *domain.NarrativeChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	next := 1
	for _, existing := range m.chunks {
		if existing.ProjectID == c.ProjectID && existing.ChunkIndex >= next {
			next = existing.ChunkIndex + 1
		}
	}
	c.ID = uuid.New()
	c.ChunkIndex = next
	c.CreatedAt = time.Now()
	m.chunks = append(m.chunks, *c)
	return nil
}

func (m *mockChunkStore) ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.NarrativeChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NarrativeChunk
	for i := len(m.chunks) - 1; i >= 0 && len(out) < limit; i-- {
		if m.chunks[i].ProjectID == projectID {
			out = append(out, m.chunks[i])
		}
	}
	return out, nil
}

func (m *mockChunkStore) Similar(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]domain.NarrativeChunk, error) {
	if m.similarErr != nil {
		return nil, m.similarErr
	}
	return m.ListRecent(ctx, projectID, limit)
}

func tok(i int, text, lemma, pos, dep string, head int) grammar.Token {
	return grammar.Token{Index: i, Text: text, Lemma: lemma, POS: pos, Dep: dep, Head: head}
}

// handedDoc is "Sarah handed <object> to John." with Sarah and John tagged as people.
func handedDoc(object string) *grammar.Document {
	text := "Sarah handed the " + object + " to John."
	return &grammar.Document{
		Text: text,
		Sentences: []grammar.Sentence{{
			Text: text,
			Tokens: []grammar.Token{
				tok(0, "Sarah", "Sarah", "PROPN", "nsubj", 1),
				tok(1, "handed", "hand", "VERB", "ROOT", 1),
				tok(2, "the", "the", "DET", "det", 3),
				tok(3, object, object, "NOUN", "dobj", 1),
				tok(4, "to", "to", "ADP", "prep", 1),
				tok(5, "John", "John", "PROPN", "pobj", 4),
				tok(6, ".", ".", "PUNCT", "punct", 1),
			},
		}},
		Entities: []grammar.Span{
			{Text: "Sarah", Label: "PERSON"},
			{Text: "John", Label: "PERSON"},
		},
	}
}
