package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/adapter/gateway/backup"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

func (f *fixture) exporter(backups output.BackupGateway) *ExportService {
	return NewExportService(f.journeys, f.journals, f.tx, backups, f.clock, nil)
}

func (f *fixture) journeyWithJournal(t *testing.T) *journey.Record {
	t.Helper()
	ctx := context.Background()
	jr, err := f.journals.Create(ctx, journal.Journal{Title: "Notes", Content: "<p>pack</p>"})
	require.NoError(t, err)

	src := startJourney("Trip")
	src.JournalID = jr.ID
	src.Nodes = append(src.Nodes, journey.Node{
		ID: "g", Type: journey.NodeTypeGoal, Label: "Summit",
		Position: journey.Position{X: 250, Y: 10},
		Size:     &journey.Size{Width: 120, Height: 40},
	})
	src.Edges = []journey.Edge{{ID: "e", Source: "start", Target: "g"}}
	rec, err := f.journeys.Create(ctx, src)
	require.NoError(t, err)
	return rec
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportService_ExportIncludesJournals(t *testing.T) {
	f := newFixture(t)
	rec := f.journeyWithJournal(t)

	doc, err := f.exporter(nil).Export(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Equal(t, rec.ID, doc.Journey.ID)
	require.Len(t, doc.Journals, 1)
	assert.Equal(t, rec.JournalID, doc.Journals[0].ID)
	assert.Equal(t, "<p>pack</p>", doc.Journals[0].Content)
}

func TestExportService_ExportMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.exporter(nil).Export(context.Background(), "nope")
	assert.Error(t, err)
}

func TestExportService_ImportCreatesCopy(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			rec := f.journeyWithJournal(t)
			svc := f.exporter(nil)

			doc, err := svc.Export(ctx, rec.ID)
			require.NoError(t, err)
			data, err := doc.Encode(format)
			require.NoError(t, err)
			decoded, err := DecodeDocument(data, format)
			require.NoError(t, err)
			assert.True(t, decoded.Journey.Graph().Equal(rec.Graph()))

			f.clock.Advance(time.Minute)
			imported, err := svc.Import(ctx, decoded, "anon-7")
			require.NoError(t, err)

			assert.NotEqual(t, rec.ID, imported.ID)
			assert.Equal(t, "Trip", imported.Name)
			assert.Equal(t, "anon-7", imported.OwnerID)
			assert.True(t, imported.IsDirty)
			require.Len(t, imported.Nodes, 2)
			require.Len(t, imported.Edges, 1)
			assert.Equal(t, imported.Nodes[1].ID, imported.Edges[0].Target)
			require.NotNil(t, imported.Nodes[1].Size)
			assert.Equal(t, 120.0, imported.Nodes[1].Size.Width)

			require.NotEmpty(t, imported.JournalID)
			assert.NotEqual(t, rec.JournalID, imported.JournalID)
			jr, err := f.journals.Get(ctx, imported.JournalID)
			require.NoError(t, err)
			assert.Equal(t, "anon-7", jr.OwnerID)
			assert.Equal(t, "<p>pack</p>", jr.Content)

			all, err := f.journeys.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestExportService_ImportDropsUnknownJournalRefs(t *testing.T) {
	f := newFixture(t)
	src := startJourney("Orphaned")
	src.ID = "src"
	src.JournalID = "gone"

	imported, err := f.exporter(nil).Import(context.Background(), &Document{Version: DocumentVersion, Journey: src}, "")
	require.NoError(t, err)
	assert.Empty(t, imported.JournalID)
}

func TestExportService_ImportInvalidWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := journey.Journey{
		Name:  "Bad",
		Nodes: []journey.Node{{ID: "start", Type: journey.NodeTypeMilestone, Label: "Start"}},
		Edges: []journey.Edge{{ID: "e", Source: "start", Target: "start"}},
	}
	doc := &Document{
		Version:  DocumentVersion,
		Journey:  bad,
		Journals: []journal.Journal{{ID: "j", Title: "Kept?"}},
	}

	_, err := f.exporter(nil).Import(ctx, doc, "")
	require.Error(t, err)

	journals, err := f.journals.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, journals)
}

func TestDecodeDocument_RejectsUnknownVersion(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"version": 99}`), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeDocument([]byte(`{}`), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeDocument([]byte(`{`), FormatJSON)
	assert.Error(t, err)
}

func TestExportService_BackupRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.journeyWithJournal(t)
	svc := f.exporter(backup.NewMemoryBackupGateway())

	meta, err := svc.CreateBackup(ctx, rec.ID, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, meta.JourneyID)
	assert.Equal(t, "Trip", meta.Metadata["name"])

	list, err := svc.ListBackups(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	restored, err := svc.RestoreBackup(ctx, meta.ID, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, restored.ID)
	assert.Equal(t, "user-1", restored.OwnerID)
	assert.Len(t, restored.Nodes, 2)
	assert.NotEqual(t, rec.JournalID, restored.JournalID)

	_, err = svc.RestoreBackup(ctx, "missing", "user-1")
	assert.ErrorIs(t, err, output.ErrSnapshotNotFound)
}

func TestExportService_BackupsDisabled(t *testing.T) {
	f := newFixture(t)
	svc := f.exporter(nil)
	ctx := context.Background()

	_, err := svc.CreateBackup(ctx, "x", FormatJSON)
	assert.ErrorIs(t, err, ErrBackupsDisabled)
	_, err = svc.ListBackups(ctx, "")
	assert.ErrorIs(t, err, ErrBackupsDisabled)
	_, err = svc.RestoreBackup(ctx, "x", "")
	assert.ErrorIs(t, err, ErrBackupsDisabled)
}
