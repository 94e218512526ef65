package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/service"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// Target is the local side of one entity kind: the mutation API's sync hooks
type Target[T model.Entity] interface {
	Kind() model.Kind
	Tracked(ctx context.Context, id string) (service.Tracked[T], error)
	AllTracked(ctx context.Context) ([]service.Tracked[T], error)
	PendingTracked(ctx context.Context) ([]service.Tracked[T], error)
	MarkSyncedVersion(ctx context.Context, id string, version time.Time) (bool, error)
	MarkUnsynced(ctx context.Context, id string) error
	ApplyRemote(ctx context.Context, remote T) error
	Delete(ctx context.Context, id string) error
	ReassignOwner(ctx context.Context, from, to string) (int, error)
}

// Report summarizes a reconciliation or forced push
type Report struct {
	Pushed int                `json:"pushed"`
	Pulled int                `json:"pulled"`
	Errors []output.ItemError `json:"errors,omitempty"`
}

func (r *Report) merge(other Report) {
	r.Pushed += other.Pushed
	r.Pulled += other.Pulled
	r.Errors = append(r.Errors, other.Errors...)
}

// syncer is the kind-independent view of an entitySyncer
type syncer interface {
	kind() model.Kind
	pushOne(ctx context.Context, id string) error
	pushPending(ctx context.Context) (int, error)
	reconcile(ctx context.Context) (Report, error)
	delete(ctx context.Context, id string, remote bool) error
	reassign(ctx context.Context, from, to string) (int, error)
}

type entitySyncer[T model.Entity] struct {
	local  Target[T]
	remote func() output.RemoteStore[T]
	logger *zap.Logger
}

func (s *entitySyncer[T]) kind() model.Kind { return s.local.Kind() }

// pushOne sends the entity's current local content. A never-synced entity is
// created, anything else updated; each falls back to the other when the server
// disagrees about existence. Failure sets the dirty flag again.
func (s *entitySyncer[T]) pushOne(ctx context.Context, id string) error {
	t, err := s.local.Tracked(ctx, id)
	if err != nil {
		return fmt.Errorf("read %s/%s failed: %w", s.kind(), id, err)
	}
	version := t.Entity.LastUpdated()
	remote := s.remote()

	if t.State.NeverSynced() {
		_, err = remote.Create(ctx, t.Entity)
		if errors.Is(err, output.ErrRemoteConflict) {
			_, err = remote.Update(ctx, id, t.Entity)
		}
	} else {
		_, err = remote.Update(ctx, id, t.Entity)
		if errors.Is(err, output.ErrRemoteNotFound) {
			_, err = remote.Create(ctx, t.Entity)
		}
	}
	if err != nil {
		if uerr := s.local.MarkUnsynced(ctx, id); uerr != nil {
			s.logger.Error("mark unsynced failed", zap.String("id", id), zap.Error(uerr))
		}
		return fmt.Errorf("push %s/%s failed: %w", s.kind(), id, err)
	}

	clean, err := s.local.MarkSyncedVersion(ctx, id, version)
	if err != nil {
		return fmt.Errorf("mark %s/%s synced failed: %w", s.kind(), id, err)
	}
	if !clean {
		s.logger.Debug("edited during push, left dirty", zap.Stringer("kind", s.kind()), zap.String("id", id))
	}
	return nil
}

func (s *entitySyncer[T]) pushPending(ctx context.Context) (int, error) {
	pending, err := s.local.PendingTracked(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending %s failed: %w", s.kind(), err)
	}
	var errs []error
	pushed := 0
	for _, t := range pending {
		err := s.pushOne(ctx, t.Entity.EntityID())
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pushed++
	}
	return pushed, errors.Join(errs...)
}

// reconcile sends every local entity to the bulk endpoint and merges the
// authoritative answer: entities the server holds newer copies of (or that
// are absent locally) are pulled, confirmed ones are marked synced, and
// per-item failures are set dirty again and reported.
func (s *entitySyncer[T]) reconcile(ctx context.Context) (Report, error) {
	var report Report

	all, err := s.local.AllTracked(ctx)
	if err != nil {
		return report, fmt.Errorf("list %s failed: %w", s.kind(), err)
	}
	entities := make([]T, 0, len(all))
	local := make(map[string]service.Tracked[T], len(all))
	for _, t := range all {
		entities = append(entities, t.Entity)
		local[t.Entity.EntityID()] = t
	}

	res, err := s.remote().Sync(ctx, entities)
	if err != nil {
		return report, fmt.Errorf("sync %s failed: %w", s.kind(), err)
	}

	failed := make(map[string]struct{}, len(res.Errors))
	for _, ie := range res.Errors {
		failed[ie.ID] = struct{}{}
		report.Errors = append(report.Errors, output.ItemError{ID: string(s.kind()) + "/" + ie.ID, Error: ie.Error})
		s.logger.Warn("sync item rejected", zap.Stringer("kind", s.kind()), zap.String("id", ie.ID), zap.String("error", ie.Error))
		if _, ok := local[ie.ID]; ok {
			if err := s.local.MarkUnsynced(ctx, ie.ID); err != nil {
				s.logger.Error("mark unsynced failed", zap.String("id", ie.ID), zap.Error(err))
			}
		}
	}

	for _, remote := range res.Entities {
		id := remote.EntityID()
		if _, bad := failed[id]; bad {
			continue
		}
		mine, ok := local[id]
		switch {
		case !ok || remote.LastUpdated().After(mine.Entity.LastUpdated()):
			pulled, err := s.pull(ctx, remote)
			if err != nil {
				report.Errors = append(report.Errors, output.ItemError{ID: string(s.kind()) + "/" + id, Error: err.Error()})
				continue
			}
			if pulled {
				report.Pulled++
			}
		case remote.LastUpdated().Equal(mine.Entity.LastUpdated()):
			if _, err := s.local.MarkSyncedVersion(ctx, id, mine.Entity.LastUpdated()); err != nil {
				report.Errors = append(report.Errors, output.ItemError{ID: string(s.kind()) + "/" + id, Error: err.Error()})
				continue
			}
			if mine.State.IsDirty || mine.State.NeverSynced() {
				report.Pushed++
			}
		default:
			// the server kept an older copy; stays dirty for the next push
		}
	}
	return report, nil
}

// pull applies a remote entity unless the local copy was rewritten to
// something at least as new since the batch was read
func (s *entitySyncer[T]) pull(ctx context.Context, remote T) (bool, error) {
	current, err := s.local.Tracked(ctx, remote.EntityID())
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return false, err
	case !remote.LastUpdated().After(current.Entity.LastUpdated()):
		return false, nil
	}
	if err := s.local.ApplyRemote(ctx, remote); err != nil {
		return false, err
	}
	return true, nil
}

// delete removes the entity locally and, when remote is set and the entity
// had ever been pushed, on the server too
func (s *entitySyncer[T]) delete(ctx context.Context, id string, remote bool) error {
	t, err := s.local.Tracked(ctx, id)
	if err != nil {
		return err
	}
	if err := s.local.Delete(ctx, id); err != nil {
		return err
	}
	if !remote || t.State.NeverSynced() {
		return nil
	}
	if err := s.remote().Delete(ctx, id); err != nil && !errors.Is(err, output.ErrRemoteNotFound) {
		return fmt.Errorf("delete remote %s/%s failed: %w", s.kind(), id, err)
	}
	return nil
}

func (s *entitySyncer[T]) reassign(ctx context.Context, from, to string) (int, error) {
	return s.local.ReassignOwner(ctx, from, to)
}
