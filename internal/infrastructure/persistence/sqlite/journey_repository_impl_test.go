package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// setupTestDB opens a migrated database in a per-test directory
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journeygrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testJourney(id string, updatedAt time.Time) *journey.Record {
	return journey.NewRecord(journey.Journey{
		ID:         id,
		Name:       "Journey " + id,
		Visibility: journey.VisibilityPrivate,
		OwnerID:    "user-1",
		Nodes: []journey.Node{
			{ID: "start", Type: journey.NodeTypeMilestone, Label: "Start", Status: journey.StatusNotStarted},
			{ID: "g1", Type: journey.NodeTypeGoal, Label: "Goal", Position: journey.Position{X: 250, Y: 0},
				Size: &journey.Size{Width: 120, Height: 40}, Status: journey.StatusInProgress, JournalID: "jr-1"},
		},
		Edges:     []journey.Edge{{ID: "e1", Source: "start", Target: "g1", Type: "default"}},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}, model.Dirty())
}

func TestJourneyRepositoryImpl_PutGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJourneyRepository(db)
	ctx := context.Background()

	now := model.Timestamp(time.Now())
	rec := testJourney("j1", now)
	require.NoError(t, repo.Put(ctx, rec))

	found, err := repo.Get(ctx, "j1")
	require.NoError(t, err)

	assert.Equal(t, rec.Journey, found.Journey)
	assert.True(t, found.IsDirty)
	assert.Nil(t, found.SyncedAt)
}

func TestJourneyRepositoryImpl_PutReplacesGraph(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJourneyRepository(db)
	ctx := context.Background()

	now := model.Timestamp(time.Now())
	require.NoError(t, repo.Put(ctx, testJourney("j1", now)))

	synced := now.Add(time.Second)
	replacement := journey.NewRecord(journey.Journey{
		ID:         "j1",
		Name:       "Renamed",
		Visibility: journey.VisibilityPublic,
		Nodes:      []journey.Node{{ID: "root", Type: journey.NodeTypeMilestone, Status: journey.StatusCompleted}},
		Edges:      []journey.Edge{},
		CreatedAt:  now,
		UpdatedAt:  synced,
	}, model.Synced(synced))
	require.NoError(t, repo.Put(ctx, replacement))

	found, err := repo.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Name)
	require.Len(t, found.Nodes, 1)
	assert.Equal(t, "root", found.Nodes[0].ID)
	assert.Empty(t, found.Edges)
	assert.False(t, found.IsDirty)
	require.NotNil(t, found.SyncedAt)
	assert.True(t, synced.Equal(*found.SyncedAt))
}

func TestJourneyRepositoryImpl_GetNotFound(t *testing.T) {
	repo := NewJourneyRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	err = repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestJourneyRepositoryImpl_Queries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJourneyRepository(db)
	ctx := context.Background()

	base := model.Timestamp(time.Now())
	oldest := testJourney("a", base)
	middle := testJourney("b", base.Add(time.Minute))
	newest := testJourney("c", base.Add(2*time.Minute))

	middle.SyncState = model.Synced(base)
	newest.SyncedAt = model.Synced(base).SyncedAt
	newest.Nodes[1].JournalID = "jr-2"

	for _, rec := range []*journey.Record{oldest, middle, newest} {
		require.NoError(t, repo.Put(ctx, rec))
	}

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	dirty, err := repo.GetDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(dirty))

	unsynced, err := repo.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(unsynced))

	byJournal, err := repo.FindByJournalID(ctx, "jr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(byJournal))
}

func TestJourneyRepositoryImpl_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJourneyRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, testJourney("j1", time.Now())))
	require.NoError(t, repo.Delete(ctx, "j1"))

	var nodes, edges int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM journey_nodes").Scan(&nodes))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM journey_edges").Scan(&edges))
	assert.Zero(t, nodes)
	assert.Zero(t, edges)
}

func TestJourneyRepositoryImpl_EnforcesEdgeIntegrity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJourneyRepository(db)
	ctx := context.Background()

	rec := testJourney("j1", time.Now())
	rec.Edges = append(rec.Edges, journey.Edge{ID: "dangling", Source: "start", Target: "ghost"})

	err := repo.Put(ctx, rec)
	require.Error(t, err)

	// the failed put left nothing behind
	_, err = repo.Get(ctx, "j1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestJourneyRepositoryImpl_RejectsSecondMilestone(t *testing.T) {
	repo := NewJourneyRepository(setupTestDB(t))

	rec := testJourney("j1", time.Now())
	rec.Nodes[1].Type = journey.NodeTypeMilestone

	assert.Error(t, repo.Put(context.Background(), rec))
}

func TestMigrator_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, NewMigrator(db).Migrate())
	version, err := NewMigrator(db).Version()
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func ids(records []*journey.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
