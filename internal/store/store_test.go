package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to DATABASE_URL and applies the migrations. Tests using it
// are skipped in -short mode or without a database.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = Migrate(url, "../../migrations")
	require.NoError(t, err)
	return pool
}

func TestEntityStore_CreateIsIdempotent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := NewEntityStore(pool)
	projectID := uuid.New()

	first := &domain.Entity{ProjectID: projectID, Name: "Sarah", Kind: domain.KindCharacter}
	require.NoError(t, s.Create(ctx, first))

	second := &domain.Entity{ProjectID: projectID, Name: "Sarah", Kind: domain.KindLocation, Description: "the smith", IsInitialSetup: true}
	require.NoError(t, s.Create(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.KindCharacter, second.Kind, "stored kind wins")
	assert.Equal(t, "the smith", second.Description)
	assert.True(t, second.IsInitialSetup)

	found, err := s.FindByName(ctx, projectID, "Sarah")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = s.FindByName(ctx, projectID, "sarah")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := s.UpdateMetadata(ctx, projectID, first.ID, map[string]any{"summary": "A smith."})
	require.NoError(t, err)
	assert.Equal(t, "A smith.", updated.Metadata["summary"])

	list, err := s.ListByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFactStore_CreateAndList(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	entities := NewEntityStore(pool)
	facts := NewFactStore(pool)
	projectID := uuid.New()

	john := &domain.Entity{ProjectID: projectID, Name: "John", Kind: domain.KindCharacter}
	sword := &domain.Entity{ProjectID: projectID, Name: "sword"}
	require.NoError(t, entities.Create(ctx, john))
	require.NoError(t, entities.Create(ctx, sword))

	f := &domain.Fact{ProjectID: projectID, SubjectID: john.ID, ObjectID: sword.ID, Relation: "has", Description: "John has a sword."}
	require.NoError(t, facts.Create(ctx, f))
	dup := &domain.Fact{ProjectID: projectID, SubjectID: john.ID, ObjectID: sword.ID, Relation: "HAS", Description: "again"}
	require.NoError(t, facts.Create(ctx, dup))
	assert.Equal(t, f.ID, dup.ID)
	assert.Equal(t, "John has a sword.", dup.Description)

	list, err := facts.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "HAS", list[0].Relation)
}

func TestConflictLogStore_Lifecycle(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := NewConflictLogStore(pool)
	projectID := uuid.New()

	c := domain.NewConflict("John", "HAS", "shield", []string{"sword"}, "John has a shield.")
	l := &domain.ConflictLog{
		ProjectID:       projectID,
		Subject:         c.Subject,
		Relation:        c.Relation,
		Object:          c.Object,
		ExistingObjects: c.ExistingObjects,
		OriginalText:    c.SourceText,
		Explanation:     c.Message,
	}
	require.NoError(t, s.Create(ctx, l))
	assert.Equal(t, domain.StatusPending, l.Status)
	assert.Equal(t, "Reconcile John's HAS state before accepting 'shield'.", l.SuggestedFix)

	claimed, err := s.ClaimUnexplained(ctx, projectID, 50, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, []string{"sword"}, claimed[0].ExistingObjects)

	again, err := s.ClaimUnexplained(ctx, projectID, 50, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "a live claim is not handed out twice")

	require.NoError(t, s.ReleaseClaim(ctx, l.ID))
	claimed, err = s.ClaimUnexplained(ctx, projectID, 50, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "a released log can be claimed again")

	projects, err := s.ListProjectsWithUnexplained(ctx)
	require.NoError(t, err)
	assert.Contains(t, projects, projectID)

	require.NoError(t, s.SetAlert(ctx, l.ID, "John swapped his sword for a shield?"))
	claimed, err = s.ClaimUnexplained(ctx, projectID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed, "explained logs are never claimed")

	got, err := s.GetByID(ctx, projectID, l.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ExplainedAt)
	assert.Equal(t, "John swapped his sword for a shield?", got.SuggestedFix)

	require.NoError(t, s.UpdateStatus(ctx, projectID, l.ID, domain.StatusResolved))
	pending, err := s.ListPending(ctx, projectID, 50)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, s.UpdateStatus(ctx, uuid.New(), l.ID, domain.StatusResolved), ErrNotFound)
	_, err = s.GetByID(ctx, projectID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChunkStore_IndexesSequentially(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := NewChunkStore(pool)
	projectID := uuid.New()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, s.Create(ctx, &domain.NarrativeChunk{ProjectID: projectID, Content: text}))
	}

	recent, err := s.ListRecent(ctx, projectID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, 3, recent[0].ChunkIndex)
	assert.Equal(t, 2, recent[1].ChunkIndex)
}
