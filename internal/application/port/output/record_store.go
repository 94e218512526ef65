package output

import (
	"context"
	"errors"

	"github.com/journeygrid/journeygrid/internal/domain/model"
)

var (
	// ErrRecordNotFound is returned by the server-side store for an absent ID
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists is returned by Insert for an ID already in use
	ErrRecordExists = errors.New("record already exists")
)

// MutateFunc computes the next value of a record from its current value.
// Returning write=false leaves the record untouched.
type MutateFunc[T model.Entity] func(current T) (next T, write bool, err error)

// RecordStore is the server of record's storage for one entity kind
type RecordStore[T model.Entity] interface {
	// Get retrieves a record, or ErrRecordNotFound
	Get(ctx context.Context, id string) (T, error)

	// ListByOwner retrieves every record owned by ownerID, most recently updated first
	ListByOwner(ctx context.Context, ownerID string) ([]T, error)

	// Insert stores a new record, or returns ErrRecordExists
	Insert(ctx context.Context, entity T) error

	// Mutate atomically replaces a record with the value computed by fn
	Mutate(ctx context.Context, id string, fn MutateFunc[T]) (T, error)

	// Delete removes a record, or returns ErrRecordNotFound
	Delete(ctx context.Context, id string) error
}
