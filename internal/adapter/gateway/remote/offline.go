package remote

import (
	"context"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// Offline is the gateway of an installation without a server. Every call
// fails with output.ErrRemoteUnavailable.
type Offline struct{}

var _ output.RemoteGateway = Offline{}

// Journeys returns the journey endpoints
func (Offline) Journeys() output.RemoteStore[journey.Journey] { return offlineStore[journey.Journey]{} }

// Journals returns the journal endpoints
func (Offline) Journals() output.RemoteStore[journal.Journal] { return offlineStore[journal.Journal]{} }

// LinkAccount fails
func (Offline) LinkAccount(context.Context, string) (int, error) {
	return 0, output.ErrRemoteUnavailable
}

// Ping fails
func (Offline) Ping(context.Context) error { return output.ErrRemoteUnavailable }

type offlineStore[T model.Entity] struct{}

func (offlineStore[T]) GetAll(context.Context) ([]T, error) {
	return nil, output.ErrRemoteUnavailable
}

func (offlineStore[T]) GetByID(context.Context, string) (T, error) {
	var zero T
	return zero, output.ErrRemoteUnavailable
}

func (offlineStore[T]) Create(context.Context, T) (T, error) {
	var zero T
	return zero, output.ErrRemoteUnavailable
}

func (offlineStore[T]) Update(context.Context, string, T) (T, error) {
	var zero T
	return zero, output.ErrRemoteUnavailable
}

func (offlineStore[T]) Delete(context.Context, string) error {
	return output.ErrRemoteUnavailable
}

func (offlineStore[T]) Sync(context.Context, []T) (*output.SyncResult[T], error) {
	return nil, output.ErrRemoteUnavailable
}
