package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// MemoryBackupGateway keeps snapshots in process memory
type MemoryBackupGateway struct {
	mu        sync.RWMutex
	snapshots map[string]*output.Snapshot
	now       func() time.Time
}

var _ output.BackupGateway = (*MemoryBackupGateway)(nil)

// NewMemoryBackupGateway creates an empty in-memory gateway
func NewMemoryBackupGateway() *MemoryBackupGateway {
	return &MemoryBackupGateway{snapshots: make(map[string]*output.Snapshot), now: time.Now}
}

// SaveSnapshot stores a copy of the content
func (g *MemoryBackupGateway) SaveSnapshot(ctx context.Context, req output.SaveSnapshotRequest) (*output.SnapshotMetadata, error) {
	if req.JourneyID == "" {
		return nil, errors.New("journey id is required")
	}
	id := model.NewID()
	meta := newMetadata(id, req, "memory://"+req.JourneyID+"/"+id, g.now())
	content := append([]byte(nil), req.Content...)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[id] = &output.Snapshot{ID: id, Content: content, Metadata: meta}
	return &meta, nil
}

// LoadSnapshot returns a copy of a stored snapshot
func (g *MemoryBackupGateway) LoadSnapshot(ctx context.Context, snapshotID string) (*output.Snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.snapshots[snapshotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", output.ErrSnapshotNotFound, snapshotID)
	}
	out := *s
	out.Content = append([]byte(nil), s.Content...)
	return &out, nil
}

// ListSnapshots lists snapshots, newest first
func (g *MemoryBackupGateway) ListSnapshots(ctx context.Context, journeyID string) ([]*output.SnapshotMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	list := []*output.SnapshotMetadata{}
	for _, s := range g.snapshots {
		if journeyID != "" && s.Metadata.JourneyID != journeyID {
			continue
		}
		meta := s.Metadata
		list = append(list, &meta)
	}
	sortNewestFirst(list)
	return list, nil
}

// DeleteSnapshot removes a snapshot
func (g *MemoryBackupGateway) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.snapshots[snapshotID]; !ok {
		return fmt.Errorf("%w: %s", output.ErrSnapshotNotFound, snapshotID)
	}
	delete(g.snapshots, snapshotID)
	return nil
}
