package output

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

var (
	// ErrRemoteNotFound is returned when the server has no accessible entity with the ID
	ErrRemoteNotFound = errors.New("remote entity not found")

	// ErrRemoteConflict is returned when creating an entity whose ID already exists server-side
	ErrRemoteConflict = errors.New("remote entity already exists")

	// ErrUnauthorized is returned when the server rejects the session's credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRemoteUnavailable is returned while the transport refuses calls after repeated failures
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// RemoteError carries a non-success response from the server of record
type RemoteError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote error: status %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the transport sentinels
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRemoteConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Temporary reports whether the failure lies with the server rather than the request
func (e *RemoteError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// ItemError reports one entity a bulk sync could not process
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncResult is the server's answer to a bulk sync: the authoritative
// post-merge set for the caller's account plus per-item failures
type SyncResult[T model.Entity] struct {
	Entities []T         `json:"entities"`
	Errors   []ItemError `json:"errors"`
}

// RemoteStore is the server of record's RPC surface for one entity kind
type RemoteStore[T model.Entity] interface {
	// GetAll lists every entity of the caller's account
	GetAll(ctx context.Context) ([]T, error)

	// GetByID fetches one entity, or ErrRemoteNotFound if absent or inaccessible
	GetByID(ctx context.Context, id string) (T, error)

	// Create stores a new entity; the server fills timestamps the entity lacks
	Create(ctx context.Context, entity T) (T, error)

	// Update overwrites the content fields of an existing entity
	Update(ctx context.Context, id string, entity T) (T, error)

	// Delete removes an entity
	Delete(ctx context.Context, id string) error

	// Sync performs bulk last-writer-wins reconciliation
	Sync(ctx context.Context, entities []T) (*SyncResult[T], error)
}

// RemoteGateway is the transport to the server of record
type RemoteGateway interface {
	Journeys() RemoteStore[journey.Journey]
	Journals() RemoteStore[journal.Journal]

	// LinkAccount moves every record owned by the anonymous identity behind
	// anonymousToken to the caller's account and returns how many moved
	LinkAccount(ctx context.Context, anonymousToken string) (int, error)

	// Ping checks that the server is reachable
	Ping(ctx context.Context) error
}
