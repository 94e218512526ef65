// Package backup stores exported journey snapshots outside the local database.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/util"
)

const (
	snapshotsDir = "snapshots"
	contentFile  = "content"
	metadataFile = "metadata.json"
)

// LocalBackupGateway implements BackupGateway on a filesystem.
// Directory structure: <baseDir>/snapshots/<journeyID>/<snapshotID>/
//   - content: the encoded export document
//   - metadata.json: snapshot metadata
type LocalBackupGateway struct {
	fs      afero.Fs
	baseDir string
	now     func() time.Time
}

var _ output.BackupGateway = (*LocalBackupGateway)(nil)

// NewLocalBackupGateway creates a filesystem-backed gateway rooted at baseDir
func NewLocalBackupGateway(fs afero.Fs, baseDir string) (*LocalBackupGateway, error) {
	if err := fs.MkdirAll(filepath.Join(baseDir, snapshotsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshots directory: %w", err)
	}
	return &LocalBackupGateway{fs: fs, baseDir: baseDir, now: time.Now}, nil
}

// SaveSnapshot writes a snapshot under its journey's directory
func (g *LocalBackupGateway) SaveSnapshot(ctx context.Context, req output.SaveSnapshotRequest) (*output.SnapshotMetadata, error) {
	if req.JourneyID == "" {
		return nil, errors.New("journey id is required")
	}
	id := model.NewID()
	dir := filepath.Join(g.baseDir, snapshotsDir, req.JourneyID, id)
	if err := g.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	contentPath := filepath.Join(dir, contentFile)
	if err := util.WriteFileAtomic(g.fs, contentPath, req.Content, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot content: %w", err)
	}

	meta := newMetadata(id, req, contentPath, g.now())
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := util.WriteFileAtomic(g.fs, filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return &meta, nil
}

// LoadSnapshot reads a snapshot by ID
func (g *LocalBackupGateway) LoadSnapshot(ctx context.Context, snapshotID string) (*output.Snapshot, error) {
	dir, err := g.find(snapshotID)
	if err != nil {
		return nil, err
	}
	meta, err := g.readMetadata(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}
	content, err := afero.ReadFile(g.fs, filepath.Join(dir, contentFile))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return &output.Snapshot{ID: snapshotID, Content: content, Metadata: *meta}, nil
}

// ListSnapshots lists snapshots, newest first
func (g *LocalBackupGateway) ListSnapshots(ctx context.Context, journeyID string) ([]*output.SnapshotMetadata, error) {
	root := filepath.Join(g.baseDir, snapshotsDir)
	if journeyID != "" {
		root = filepath.Join(root, journeyID)
	}
	if ok, _ := afero.DirExists(g.fs, root); !ok {
		return []*output.SnapshotMetadata{}, nil
	}

	list := []*output.SnapshotMetadata{}
	err := afero.Walk(g.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != metadataFile {
			return nil
		}
		meta, err := g.readMetadata(path)
		if err != nil {
			// unreadable snapshots are skipped
			return nil
		}
		list = append(list, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sortNewestFirst(list)
	return list, nil
}

// DeleteSnapshot removes a snapshot
func (g *LocalBackupGateway) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	dir, err := g.find(snapshotID)
	if err != nil {
		return err
	}
	if err := g.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// find locates <baseDir>/snapshots/*/<snapshotID>
func (g *LocalBackupGateway) find(snapshotID string) (string, error) {
	if snapshotID == "" {
		return "", output.ErrSnapshotNotFound
	}
	matches, err := afero.Glob(g.fs, filepath.Join(g.baseDir, snapshotsDir, "*", snapshotID))
	if err != nil {
		return "", fmt.Errorf("search snapshot: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", output.ErrSnapshotNotFound, snapshotID)
	}
	return matches[0], nil
}

func (g *LocalBackupGateway) readMetadata(path string) (*output.SnapshotMetadata, error) {
	data, err := afero.ReadFile(g.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta output.SnapshotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

func newMetadata(id string, req output.SaveSnapshotRequest, path string, now time.Time) output.SnapshotMetadata {
	contentType := req.ContentType
	if contentType == "" {
		contentType = contentTypeFor(req.Format)
	}
	return output.SnapshotMetadata{
		ID:          id,
		JourneyID:   req.JourneyID,
		Format:      req.Format,
		StoragePath: path,
		ContentType: contentType,
		Size:        int64(len(req.Content)),
		CreatedAt:   now.UTC(),
		Metadata:    req.Metadata,
	}
}

func contentTypeFor(format string) string {
	switch format {
	case "yaml":
		return "application/yaml"
	default:
		return "application/json"
	}
}

// sortNewestFirst orders by creation time; snapshot IDs are ULIDs and break ties
func sortNewestFirst(list []*output.SnapshotMetadata) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
