package output

import (
	"context"
	"errors"
	"time"
)

// ErrSnapshotNotFound is returned when a backup snapshot does not exist
var ErrSnapshotNotFound = errors.New("snapshot not found")

// BackupGateway stores exported journey snapshots outside the local database.
// Supports local filesystem, S3, and in-memory storage.
type BackupGateway interface {
	// SaveSnapshot persists a snapshot
	SaveSnapshot(ctx context.Context, req SaveSnapshotRequest) (*SnapshotMetadata, error)

	// LoadSnapshot retrieves a snapshot by ID
	LoadSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error)

	// ListSnapshots lists snapshots of one journey, newest first; an empty journeyID lists all
	ListSnapshots(ctx context.Context, journeyID string) ([]*SnapshotMetadata, error)

	// DeleteSnapshot removes a snapshot
	DeleteSnapshot(ctx context.Context, snapshotID string) error
}

// SaveSnapshotRequest represents a request to save a snapshot
type SaveSnapshotRequest struct {
	JourneyID   string            // Journey the snapshot was taken from
	Format      string            // Encoding of Content: "json" or "yaml"
	Content     []byte            // Encoded export document
	Metadata    map[string]string // Additional metadata
	ContentType string            // MIME type (optional)
}

// Snapshot represents a stored snapshot
type Snapshot struct {
	ID       string
	Content  []byte
	Metadata SnapshotMetadata
}

// SnapshotMetadata contains information about a snapshot
type SnapshotMetadata struct {
	ID          string            `json:"id"`
	JourneyID   string            `json:"journeyId"`
	Format      string            `json:"format"`
	StoragePath string            `json:"storagePath"`
	ContentType string            `json:"contentType"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"createdAt"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
