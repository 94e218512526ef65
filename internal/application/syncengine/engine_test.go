package syncengine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/application/autosave"
	"github.com/journeygrid/journeygrid/internal/application/editor"
	"github.com/journeygrid/journeygrid/internal/application/scheduler"
	"github.com/journeygrid/journeygrid/internal/application/service"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/infrastructure/persistence/sqlite"
	"github.com/journeygrid/journeygrid/internal/infrastructure/transaction"
)

type fixture struct {
	clock    *scheduler.Manual
	journeys *service.JourneyService
	journals *service.JournalService
	remote   *memRemote
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journeygrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := scheduler.NewManual(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	journeyRepo := sqlite.NewJourneyRepository(db)
	journalRepo := sqlite.NewJournalRepository(db)
	tx := transaction.NewSQLiteTransactionManager(db)

	f := &fixture{
		clock:    clock,
		journeys: service.NewJourneyService(journeyRepo, journalRepo, tx, clock, nil),
		journals: service.NewJournalService(journalRepo, journeyRepo, tx, clock, nil),
		remote:   newMemRemote(),
	}
	f.engine = NewEngine(clock, f.remote, f.journeys, f.journals, Config{})
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) createJourney(t *testing.T, id, name string) *journey.Record {
	t.Helper()
	rec, err := f.journeys.Create(context.Background(), journey.Journey{
		ID:      id,
		Name:    name,
		OwnerID: "user-1",
		Nodes:   []journey.Node{{ID: "start", Type: journey.NodeTypeMilestone, Label: "Start"}},
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) local(t *testing.T, id string) *journey.Record {
	t.Helper()
	rec, err := f.journeys.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func ref(id string) model.Ref {
	return model.Ref{Kind: model.KindJourney, ID: id}
}

func TestEngine_LoggedOutIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createJourney(t, "j1", "Draft")

	f.engine.Schedule(ref("j1"))
	assert.False(t, f.engine.PendingPush())

	require.NoError(t, f.engine.SyncOne(ctx, ref("j1")))
	report, err := f.engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Pushed)

	assert.Zero(t, f.remote.journeys.count("create"))
	assert.Zero(t, f.remote.journeys.count("sync"))
	assert.True(t, f.local(t, "j1").IsDirty)
	status, _ := f.engine.Status()
	assert.Equal(t, StatusIdle, status)
}

func TestEngine_ScheduleDebouncesToLastRef(t *testing.T) {
	f := newFixture(t)
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "One")
	f.createJourney(t, "j2", "Two")

	f.engine.Schedule(ref("j1"))
	f.clock.Advance(3 * time.Second)
	f.engine.Schedule(ref("j2"))
	f.clock.Advance(3 * time.Second)
	assert.Zero(t, f.remote.journeys.count("create"))

	f.clock.Advance(2 * time.Second)

	assert.Equal(t, 1, f.remote.journeys.count("create"))
	_, ok := f.remote.journeys.get("j2")
	assert.True(t, ok)
	assert.False(t, f.local(t, "j2").IsDirty)
	assert.True(t, f.local(t, "j1").IsDirty)
}

func TestEngine_SyncOneCreateThenUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "First")

	require.NoError(t, f.engine.SyncOne(ctx, ref("j1")))
	rec := f.local(t, "j1")
	assert.False(t, rec.IsDirty)
	require.NotNil(t, rec.SyncedAt)

	name := "Renamed"
	_, err := f.journeys.Update(ctx, "j1", journey.Patch{Name: &name})
	require.NoError(t, err)
	require.NoError(t, f.engine.SyncOne(ctx, ref("j1")))

	assert.Equal(t, 1, f.remote.journeys.count("create"))
	assert.Equal(t, 1, f.remote.journeys.count("update"))
	remote, _ := f.remote.journeys.get("j1")
	assert.Equal(t, "Renamed", remote.Name)
	assert.False(t, f.local(t, "j1").IsDirty)
}

func TestEngine_SyncOneRecreatesWhenServerLostIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "First")
	require.NoError(t, f.journeys.MarkSynced(ctx, "j1"))

	require.NoError(t, f.engine.SyncOne(ctx, ref("j1")))

	assert.Equal(t, 1, f.remote.journeys.count("update"))
	assert.Equal(t, 1, f.remote.journeys.count("create"))
	_, ok := f.remote.journeys.get("j1")
	assert.True(t, ok)
}

func TestEngine_SyncOneCreateConflictFallsBackToUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	rec := f.createJourney(t, "j1", "Local")
	stale := rec.Journey
	stale.Name = "server copy"
	f.remote.journeys.put(stale)

	require.NoError(t, f.engine.SyncOne(ctx, ref("j1")))

	remote, _ := f.remote.journeys.get("j1")
	assert.Equal(t, "Local", remote.Name)
	assert.Equal(t, 1, f.remote.journeys.count("update"))
}

func TestEngine_FailureRollsBackToDirtyWithoutRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Fragile")
	boom := errors.New("connection reset")
	f.remote.journeys.err = boom

	var events []StatusEvent
	f.engine.Subscribe(func(ev StatusEvent) { events = append(events, ev) })

	err := f.engine.SyncOne(ctx, ref("j1"))
	require.ErrorIs(t, err, boom)

	status, lastErr := f.engine.Status()
	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, lastErr, boom)
	assert.True(t, f.local(t, "j1").IsDirty)
	assert.Nil(t, f.local(t, "j1").SyncedAt)

	calls := f.remote.journeys.count("create")
	f.clock.Advance(time.Hour)
	assert.Equal(t, calls, f.remote.journeys.count("create"))

	require.Len(t, events, 2)
	assert.Equal(t, StatusSyncing, events[0].Status)
	assert.Equal(t, StatusError, events[1].Status)
}

func TestEngine_EditDuringPushStaysDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Before")

	name := "typed while pushing"
	f.remote.journeys.onWrite = func() {
		f.remote.journeys.onWrite = nil
		_, err := f.journeys.Update(ctx, "j1", journey.Patch{Name: &name})
		require.NoError(t, err)
	}

	require.NoError(t, f.engine.SyncOne(ctx, ref("j1")))

	rec := f.local(t, "j1")
	assert.True(t, rec.IsDirty)
	assert.NotNil(t, rec.SyncedAt)
	assert.Equal(t, name, rec.Name)
}

func TestEngine_StatusRevertsToIdle(t *testing.T) {
	f := newFixture(t)
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Idle")

	require.NoError(t, f.engine.SyncOne(context.Background(), ref("j1")))
	status, _ := f.engine.Status()
	assert.Equal(t, StatusSynced, status)

	f.clock.Advance(59 * time.Second)
	status, _ = f.engine.Status()
	assert.Equal(t, StatusSynced, status)

	f.clock.Advance(time.Second)
	status, _ = f.engine.Status()
	assert.Equal(t, StatusIdle, status)
}

func TestEngine_OfflineDefersAndReconnectReschedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Offline edits")

	f.engine.SetOnline(false)
	status, lastErr := f.engine.Status()
	assert.Equal(t, StatusOffline, status)
	assert.NoError(t, lastErr)

	f.engine.Schedule(ref("j1"))
	f.clock.Advance(DefaultRemoteDelay)
	assert.Zero(t, f.remote.journeys.count("create"))
	assert.True(t, f.local(t, "j1").IsDirty)

	report, err := f.engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Pushed)

	f.engine.SetOnline(true)
	status, _ = f.engine.Status()
	assert.Equal(t, StatusIdle, status)
	assert.True(t, f.engine.PendingPush())

	f.clock.Advance(DefaultRemoteDelay)
	assert.Equal(t, 1, f.remote.journeys.count("create"))
	assert.False(t, f.local(t, "j1").IsDirty)
}

func TestEngine_SyncAllReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	now := f.clock.Now()

	// A: new locally
	f.createJourney(t, "a", "Local only")

	// B: only on the server
	b := journey.Journey{ID: "b", Name: "Server only", Visibility: journey.VisibilityPrivate, OwnerID: "user-1",
		Nodes: []journey.Node{}, Edges: []journey.Edge{}, CreatedAt: now, UpdatedAt: now}
	f.remote.journeys.put(b)

	// C: server copy is newer
	c := f.createJourney(t, "c", "Local C")
	require.NoError(t, f.journeys.MarkSynced(ctx, "c"))
	serverC := c.Journey
	serverC.Name = "Server C"
	serverC.UpdatedAt = now.Add(time.Hour)
	f.remote.journeys.put(serverC)

	// D: local copy is newer
	d := f.createJourney(t, "d", "Old D")
	require.NoError(t, f.journeys.MarkSynced(ctx, "d"))
	f.remote.journeys.put(d.Journey)
	f.clock.Advance(time.Minute)
	newName := "New D"
	_, err := f.journeys.Update(ctx, "d", journey.Patch{Name: &newName})
	require.NoError(t, err)

	// E: rejected by the server
	f.createJourney(t, "e", "Rejected")
	f.remote.journeys.rejected["e"] = "forbidden"

	report, err := f.engine.SyncAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Pulled)
	assert.Equal(t, 2, report.Pushed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "journey/e", report.Errors[0].ID)

	assert.False(t, f.local(t, "a").IsDirty)
	assert.Equal(t, "Server only", f.local(t, "b").Name)
	assert.False(t, f.local(t, "b").IsDirty)
	assert.Equal(t, "Server C", f.local(t, "c").Name)
	assert.False(t, f.local(t, "c").IsDirty)
	assert.Equal(t, "New D", f.local(t, "d").Name)
	assert.False(t, f.local(t, "d").IsDirty)
	remoteD, _ := f.remote.journeys.get("d")
	assert.Equal(t, "New D", remoteD.Name)
	assert.True(t, f.local(t, "e").IsDirty)

	status, _ := f.engine.Status()
	assert.Equal(t, StatusSynced, status)
}

func TestEngine_SyncAllPullsJournalsBeforeJourneys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	now := f.clock.Now()

	f.remote.journals.put(journal.Journal{ID: "jr", Title: "Notes", OwnerID: "user-1", CreatedAt: now, UpdatedAt: now})
	f.remote.journeys.put(journey.Journey{ID: "jy", Name: "With notes", JournalID: "jr", Visibility: journey.VisibilityPrivate,
		OwnerID: "user-1", Nodes: []journey.Node{}, Edges: []journey.Edge{}, CreatedAt: now, UpdatedAt: now})

	report, err := f.engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pulled)

	jr, err := f.journals.Get(ctx, "jr")
	require.NoError(t, err)
	assert.False(t, jr.IsDirty)
	assert.Equal(t, "jr", f.local(t, "jy").JournalID)
}

func TestEngine_SyncAllBatchFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Unsent")
	f.remote.journeys.err = errors.New("503")

	_, err := f.engine.SyncAll(context.Background())
	require.Error(t, err)

	status, _ := f.engine.Status()
	assert.Equal(t, StatusError, status)
	assert.True(t, f.local(t, "j1").IsDirty)
}

func TestEngine_ForceSyncCancelsPendingAndPushesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "One")
	f.createJourney(t, "j2", "Two")
	_, err := f.journals.Create(ctx, journal.Journal{ID: "n1", Title: "Notes", OwnerID: "user-1"})
	require.NoError(t, err)

	f.engine.Schedule(ref("j1"))
	n, err := f.engine.ForceSync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.False(t, f.engine.PendingPush())
	assert.Equal(t, 2, f.remote.journeys.count("create"))
	assert.Equal(t, 1, f.remote.journals.count("create"))

	f.clock.Advance(DefaultRemoteDelay)
	assert.Equal(t, 2, f.remote.journeys.count("create"))
	assert.Zero(t, f.remote.journeys.count("update"))
}

func TestEngine_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "pushed", "Pushed")
	f.createJourney(t, "local", "Local only")
	require.NoError(t, f.engine.SyncOne(ctx, ref("pushed")))

	require.NoError(t, f.engine.Delete(ctx, ref("pushed")))
	require.NoError(t, f.engine.Delete(ctx, ref("local")))

	_, ok := f.remote.journeys.get("pushed")
	assert.False(t, ok)
	assert.Equal(t, 1, f.remote.journeys.count("delete"))
	_, err := f.journeys.Get(ctx, "local")
	assert.Error(t, err)
}

func TestEngine_DeleteDropsPendingPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Short lived")
	f.createJourney(t, "j2", "Kept")

	f.engine.Schedule(ref("j1"))
	require.NoError(t, f.engine.Delete(ctx, ref("j1")))
	assert.False(t, f.engine.PendingPush())

	f.clock.Advance(DefaultRemoteDelay + time.Second)
	status, err := f.engine.Status()
	assert.Equal(t, StatusIdle, status)
	assert.NoError(t, err)
	assert.Zero(t, f.remote.journeys.count("create"))

	// a push armed for another entity survives the delete
	f.engine.Schedule(ref("j2"))
	f.createJourney(t, "j3", "Gone soon")
	require.NoError(t, f.engine.Delete(ctx, ref("j3")))
	assert.True(t, f.engine.PendingPush())
	f.clock.Advance(DefaultRemoteDelay)
	_, ok := f.remote.journeys.get("j2")
	assert.True(t, ok)
}

func TestEngine_SyncOneOfDeletedEntityIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")

	require.NoError(t, f.engine.SyncOne(ctx, ref("missing")))
	status, err := f.engine.Status()
	assert.Equal(t, StatusIdle, status)
	assert.NoError(t, err)
}

func TestEngine_MigrateAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.journeys.Create(ctx, journey.Journey{ID: "j1", OwnerID: "anon-1"})
	require.NoError(t, err)
	_, err = f.journals.Create(ctx, journal.Journal{ID: "n1", OwnerID: "anon-1"})
	require.NoError(t, err)

	_, err = f.engine.MigrateAnonymous(ctx, "anon-token", "anon-1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	f.engine.Login("user-7")
	moved, err := f.engine.MigrateAnonymous(ctx, "anon-token", "anon-1")
	require.NoError(t, err)

	assert.Equal(t, 2, moved)
	assert.Equal(t, []string{"anon-token"}, f.remote.linked)
	assert.Equal(t, "user-7", f.local(t, "j1").OwnerID)
	jr, err := f.journals.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "user-7", jr.OwnerID)
}

func TestEngine_LogoutCancelsPendingPush(t *testing.T) {
	f := newFixture(t)
	f.engine.Login("user-1")
	f.createJourney(t, "j1", "Pending")

	f.engine.Schedule(ref("j1"))
	f.engine.Logout()
	f.clock.Advance(time.Minute)

	assert.Zero(t, f.remote.journeys.count("create"))
	assert.False(t, f.engine.Authenticated())
}

// TestScenario walks an editing session end to end: build a journey, save it
// debounced, push it, then undo back to the lone milestone.
func TestScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.Login("user-1")

	policy := autosave.NewPolicy(f.clock, autosave.Config{}, f.engine)
	ed := editor.New(f.journeys, policy, editor.WithClock(f.clock.Now), editor.WithOwner(f.engine.UserID))

	start, err := ed.AddNode(ctx, journey.Node{Label: "Start", Position: journey.Position{X: 0, Y: 0}})
	require.NoError(t, err)
	goal, err := ed.AddNode(ctx, journey.Node{Label: "G", Type: journey.NodeTypeGoal, Position: journey.Position{X: 250, Y: 0}})
	require.NoError(t, err)
	_, err = ed.AddEdge(ctx, start.ID, goal.ID, "")
	require.NoError(t, err)

	ed.SaveDebounced()
	f.clock.Advance(autosave.DefaultLocalDelay)

	id := ed.JourneyID()
	rec := f.local(t, id)
	assert.True(t, rec.IsDirty)
	assert.Len(t, rec.Nodes, 2)
	assert.Len(t, rec.Edges, 1)

	require.NoError(t, f.engine.SyncOne(ctx, ref(id)))
	assert.False(t, f.local(t, id).IsDirty)

	remote, err := f.remote.Journeys().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, remote.ID)
	assert.Equal(t, rec.Name, remote.Name)
	assert.True(t, remote.Graph().Equal(rec.Graph()))
	assert.Equal(t, "user-1", remote.OwnerID)

	for i := 0; i < 2; i++ {
		ok, err := ed.Undo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	st := ed.State()
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, journey.NodeTypeMilestone, st.Nodes[0].Type)
	assert.Equal(t, "Start", st.Nodes[0].Label)
	assert.Empty(t, st.Edges)

	// the undo was saved immediately and its push is waiting on the remote window
	assert.True(t, f.engine.PendingPush())
	f.clock.Advance(DefaultRemoteDelay)
	remote, err = f.remote.Journeys().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, remote.Nodes, 1)
	assert.Empty(t, remote.Edges)
}
