package repository

import (
	"context"

	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
)

// JournalRepository is the local store's journal table
type JournalRepository interface {
	// Put inserts or fully replaces a journal record
	Put(ctx context.Context, r *journal.Record) error

	// Get retrieves a journal record by ID, or ErrNotFound
	Get(ctx context.Context, id string) (*journal.Record, error)

	// GetAll retrieves every journal, most recently updated first
	GetAll(ctx context.Context) ([]*journal.Record, error)

	// Delete removes a journal permanently, or returns ErrNotFound
	Delete(ctx context.Context, id string) error

	// GetDirty retrieves journals with unpushed local changes
	GetDirty(ctx context.Context) ([]*journal.Record, error)

	// GetUnsynced retrieves journals that were never pushed
	GetUnsynced(ctx context.Context) ([]*journal.Record, error)
}
