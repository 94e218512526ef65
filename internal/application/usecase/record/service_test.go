package record

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	redisstore "github.com/journeygrid/journeygrid/internal/infrastructure/persistence/redis"
)

var t0 = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

func newServices(t *testing.T) (*Service[journey.Journey], *Service[journal.Journal]) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	journeys := NewService[journey.Journey](redisstore.NewCollection[journey.Journey](client, model.KindJourney), JourneyRules(), nil)
	journals := NewService[journal.Journal](redisstore.NewCollection[journal.Journal](client, model.KindJournal), JournalRules(), nil)
	journeys.now = func() time.Time { return t0 }
	journals.now = func() time.Time { return t0 }
	return journeys, journals
}

func trip(id string, updated time.Time) journey.Journey {
	return journey.Journey{
		ID:        id,
		Name:      "Trip " + id,
		Nodes:     []journey.Node{{ID: "root", Type: journey.NodeTypeMilestone, Label: "Start"}},
		UpdatedAt: updated,
	}
}

func TestService_CreateClaimsAndFills(t *testing.T) {
	journeys, _ := newServices(t)
	ctx := context.Background()

	in := trip("j1", time.Time{})
	in.OwnerID = "someone-else"
	got, err := journeys.Create(ctx, "u1", in)
	require.NoError(t, err)

	assert.Equal(t, "u1", got.OwnerID)
	assert.True(t, t0.Equal(got.CreatedAt))
	assert.True(t, t0.Equal(got.UpdatedAt))
	assert.Equal(t, journey.VisibilityPrivate, got.Visibility)

	_, err = journeys.Create(ctx, "u1", trip("j1", t0))
	assert.ErrorIs(t, err, output.ErrRecordExists)
}

func TestService_CreateRejectsInvalid(t *testing.T) {
	journeys, _ := newServices(t)
	ctx := context.Background()

	in := trip("j1", t0)
	in.Edges = []journey.Edge{{ID: "e1", Source: "root", Target: "ghost"}}
	_, err := journeys.Create(ctx, "u1", in)

	verrs, ok := model.AsValidationErrors(err)
	require.True(t, ok)
	assert.Contains(t, verrs.Fields(), "edges[0].target")

	_, err = journeys.Get(ctx, "u1", "j1")
	assert.ErrorIs(t, err, output.ErrRecordNotFound)
}

func TestService_Visibility(t *testing.T) {
	journeys, _ := newServices(t)
	ctx := context.Background()

	_, err := journeys.Create(ctx, "u1", trip("private", t0))
	require.NoError(t, err)
	public := trip("public", t0)
	public.Visibility = journey.VisibilityPublic
	_, err = journeys.Create(ctx, "u1", public)
	require.NoError(t, err)

	_, err = journeys.Get(ctx, "u2", "private")
	assert.ErrorIs(t, err, output.ErrRecordNotFound)

	got, err := journeys.Get(ctx, "u2", "public")
	require.NoError(t, err)
	assert.Equal(t, "public", got.ID)

	_, err = journeys.Update(ctx, "u2", "public", trip("public", t0.Add(time.Minute)))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = journeys.Update(ctx, "u2", "private", trip("private", t0.Add(time.Minute)))
	assert.ErrorIs(t, err, output.ErrRecordNotFound)
	assert.ErrorIs(t, journeys.Delete(ctx, "u2", "public"), ErrForbidden)
}

func TestService_UpdateKeepsIdentity(t *testing.T) {
	journeys, _ := newServices(t)
	ctx := context.Background()
	_, err := journeys.Create(ctx, "u1", trip("j1", t0))
	require.NoError(t, err)

	in := trip("ignored", t0.Add(time.Hour))
	in.Name = "Renamed"
	in.OwnerID = "u9"
	in.CreatedAt = t0.Add(-time.Hour)
	got, err := journeys.Update(ctx, "u1", "j1", in)
	require.NoError(t, err)

	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, t0.Equal(got.CreatedAt))
	assert.True(t, t0.Add(time.Hour).Equal(got.UpdatedAt))

	_, err = journeys.Update(ctx, "u1", "missing", in)
	assert.ErrorIs(t, err, output.ErrRecordNotFound)
}

func TestService_SyncLastWriterWins(t *testing.T) {
	journeys, _ := newServices(t)
	ctx := context.Background()

	_, err := journeys.Create(ctx, "u1", trip("same", t0))
	require.NoError(t, err)
	newer := trip("newer", t0)
	_, err = journeys.Create(ctx, "u1", newer)
	require.NoError(t, err)
	older := trip("older", t0)
	_, err = journeys.Create(ctx, "u1", older)
	require.NoError(t, err)
	_, err = journeys.Create(ctx, "u2", trip("foreign", t0))
	require.NoError(t, err)

	newerIn := trip("newer", t0.Add(time.Minute))
	newerIn.Name = "client wins"
	olderIn := trip("older", t0.Add(-time.Minute))
	olderIn.Name = "server wins"
	sameIn := trip("same", t0)
	sameIn.Name = "tie keeps server"
	invalid := trip("invalid", t0)
	invalid.Nodes = append(invalid.Nodes, journey.Node{ID: "root", Type: journey.NodeTypeGoal})

	res, err := journeys.Sync(ctx, "u1", []journey.Journey{
		trip("fresh", t0), newerIn, olderIn, sameIn, trip("foreign", t0.Add(time.Hour)), invalid, {},
	})
	require.NoError(t, err)

	byID := make(map[string]journey.Journey)
	for _, j := range res.Entities {
		byID[j.ID] = j
	}
	assert.Len(t, byID, 4)
	assert.Contains(t, byID, "fresh")
	assert.Equal(t, "u1", byID["fresh"].OwnerID)
	assert.Equal(t, "client wins", byID["newer"].Name)
	assert.Equal(t, "Trip older", byID["older"].Name)
	assert.Equal(t, "Trip same", byID["same"].Name)

	errIDs := make([]string, 0, len(res.Errors))
	for _, ie := range res.Errors {
		errIDs = append(errIDs, ie.ID)
	}
	assert.ElementsMatch(t, []string{"foreign", "invalid", ""}, errIDs)

	foreign, err := journeys.Get(ctx, "u2", "foreign")
	require.NoError(t, err)
	assert.True(t, t0.Equal(foreign.UpdatedAt))
}

func TestService_SyncEmptyReturnsAccount(t *testing.T) {
	_, journals := newServices(t)
	ctx := context.Background()
	_, err := journals.Create(ctx, "u1", journal.Journal{ID: "n1", Title: "Notes"})
	require.NoError(t, err)

	res, err := journals.Sync(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Empty(t, res.Errors)

	res, err = journals.Sync(ctx, "u3", nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Entities)
	assert.Empty(t, res.Entities)
}

func TestLinkAccount(t *testing.T) {
	journeys, journals := newServices(t)
	ctx := context.Background()
	_, err := journeys.Create(ctx, "anon-1", trip("j1", t0))
	require.NoError(t, err)
	_, err = journals.Create(ctx, "anon-1", journal.Journal{ID: "n1", Title: "Notes"})
	require.NoError(t, err)
	_, err = journals.Create(ctx, "anon-2", journal.Journal{ID: "n2", Title: "Other"})
	require.NoError(t, err)

	moved, err := LinkAccount(ctx, "anon-1", "u1", journeys, journals)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	got, err := journeys.Get(ctx, "u1", "j1")
	require.NoError(t, err)
	assert.True(t, t0.Equal(got.UpdatedAt))
	left, err := journals.List(ctx, "anon-1")
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = journals.Get(ctx, "u1", "n2")
	assert.ErrorIs(t, err, output.ErrRecordNotFound)

	_, err = LinkAccount(ctx, "", "u1", journeys)
	assert.Error(t, err)
}
