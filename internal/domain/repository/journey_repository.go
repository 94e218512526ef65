package repository

import (
	"context"

	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// JourneyRepository is the local store's journey table.
// It performs no network I/O and no cross-entity validation.
type JourneyRepository interface {
	// Put inserts or fully replaces a journey record
	Put(ctx context.Context, r *journey.Record) error

	// Get retrieves a journey record by ID, or ErrNotFound
	Get(ctx context.Context, id string) (*journey.Record, error)

	// GetAll retrieves every journey, most recently updated first
	GetAll(ctx context.Context) ([]*journey.Record, error)

	// Delete removes a journey permanently, or returns ErrNotFound
	Delete(ctx context.Context, id string) error

	// GetDirty retrieves journeys with unpushed local changes
	GetDirty(ctx context.Context) ([]*journey.Record, error)

	// GetUnsynced retrieves journeys that were never pushed
	GetUnsynced(ctx context.Context) ([]*journey.Record, error)

	// FindByJournalID retrieves journeys that reference the journal from the journey or one of its nodes
	FindByJournalID(ctx context.Context, journalID string) ([]*journey.Record, error)
}
