package backup

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
)

// steppingClock returns a strictly increasing time on each call
func steppingClock() func() time.Time {
	t := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type gatewayCase struct {
	name string
	new  func(t *testing.T) output.BackupGateway
}

func gatewayCases() []gatewayCase {
	return []gatewayCase{
		{"local", func(t *testing.T) output.BackupGateway {
			g, err := NewLocalBackupGateway(afero.NewMemMapFs(), "/home/jg")
			require.NoError(t, err)
			g.now = steppingClock()
			return g
		}},
		{"s3", func(t *testing.T) output.BackupGateway {
			g := NewS3BackupGatewayWithClient(newFakeS3(3), "bucket", "/backups/")
			g.now = steppingClock()
			return g
		}},
		{"memory", func(t *testing.T) output.BackupGateway {
			g := NewMemoryBackupGateway()
			g.now = steppingClock()
			return g
		}},
	}
}

func TestBackupGateway_SaveAndLoad(t *testing.T) {
	for _, tc := range gatewayCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			g := tc.new(t)

			meta, err := g.SaveSnapshot(ctx, output.SaveSnapshotRequest{
				JourneyID: "j1",
				Format:    "yaml",
				Content:   []byte("title: Trip\n"),
				Metadata:  map[string]string{"title": "Trip"},
			})
			require.NoError(t, err)
			assert.NotEmpty(t, meta.ID)
			assert.Equal(t, "j1", meta.JourneyID)
			assert.Equal(t, "application/yaml", meta.ContentType)
			assert.Equal(t, int64(12), meta.Size)

			snap, err := g.LoadSnapshot(ctx, meta.ID)
			require.NoError(t, err)
			assert.Equal(t, meta.ID, snap.ID)
			assert.Equal(t, "title: Trip\n", string(snap.Content))
			assert.Equal(t, "Trip", snap.Metadata.Metadata["title"])
			assert.Equal(t, "yaml", snap.Metadata.Format)
		})
	}
}

func TestBackupGateway_RequiresJourney(t *testing.T) {
	for _, tc := range gatewayCases() {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.new(t).SaveSnapshot(context.Background(), output.SaveSnapshotRequest{Format: "json"})
			assert.Error(t, err)
		})
	}
}

func TestBackupGateway_ListNewestFirst(t *testing.T) {
	for _, tc := range gatewayCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			g := tc.new(t)

			var ids []string
			for _, journey := range []string{"j1", "j2", "j1"} {
				meta, err := g.SaveSnapshot(ctx, output.SaveSnapshotRequest{
					JourneyID: journey,
					Format:    "json",
					Content:   []byte(`{}`),
				})
				require.NoError(t, err)
				ids = append(ids, meta.ID)
			}

			all, err := g.ListSnapshots(ctx, "")
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, ids[2], all[0].ID)
			assert.Equal(t, ids[1], all[1].ID)
			assert.Equal(t, ids[0], all[2].ID)

			j1, err := g.ListSnapshots(ctx, "j1")
			require.NoError(t, err)
			require.Len(t, j1, 2)
			assert.Equal(t, ids[2], j1[0].ID)

			none, err := g.ListSnapshots(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestBackupGateway_Delete(t *testing.T) {
	for _, tc := range gatewayCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			g := tc.new(t)

			meta, err := g.SaveSnapshot(ctx, output.SaveSnapshotRequest{JourneyID: "j1", Format: "json", Content: []byte(`{}`)})
			require.NoError(t, err)

			require.NoError(t, g.DeleteSnapshot(ctx, meta.ID))

			_, err = g.LoadSnapshot(ctx, meta.ID)
			assert.ErrorIs(t, err, output.ErrSnapshotNotFound)
			assert.ErrorIs(t, g.DeleteSnapshot(ctx, meta.ID), output.ErrSnapshotNotFound)

			list, err := g.ListSnapshots(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestBackupGateway_LoadUnknown(t *testing.T) {
	for _, tc := range gatewayCases() {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.new(t).LoadSnapshot(context.Background(), "nope")
			assert.ErrorIs(t, err, output.ErrSnapshotNotFound)

			_, err = tc.new(t).LoadSnapshot(context.Background(), "")
			assert.ErrorIs(t, err, output.ErrSnapshotNotFound)
		})
	}
}

func TestLocalBackupGateway_Layout(t *testing.T) {
	fs := afero.NewMemMapFs()
	g, err := NewLocalBackupGateway(fs, "/home/jg")
	require.NoError(t, err)

	meta, err := g.SaveSnapshot(context.Background(), output.SaveSnapshotRequest{JourneyID: "j1", Format: "json", Content: []byte(`{"a":1}`)})
	require.NoError(t, err)

	content, err := afero.ReadFile(fs, "/home/jg/snapshots/j1/"+meta.ID+"/content")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(content))

	ok, err := afero.Exists(fs, "/home/jg/snapshots/j1/"+meta.ID+"/metadata.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/home/jg/snapshots/j1/"+meta.ID+"/content", meta.StoragePath)
}

func TestS3BackupGateway_KeysAndPaging(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3(1)
	g := NewS3BackupGatewayWithClient(client, "bucket", "team")

	meta, err := g.SaveSnapshot(ctx, output.SaveSnapshotRequest{JourneyID: "j1", Format: "json", Content: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/team/snapshots/j1/"+meta.ID+"/content", meta.StoragePath)
	assert.Equal(t, 2, client.count())

	_, err = g.SaveSnapshot(ctx, output.SaveSnapshotRequest{JourneyID: "j2", Format: "json", Content: []byte(`{}`)})
	require.NoError(t, err)

	// one key per page forces the continuation loop
	list, err := g.ListSnapshots(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, g.DeleteSnapshot(ctx, meta.ID))
	assert.Equal(t, 2, client.count())
}
