// Package record implements the server of record: per-user storage of
// journeys and journals with last-writer-wins bulk reconciliation.
package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// ErrForbidden is returned for writes to a record the caller can see but does not own
var ErrForbidden = errors.New("forbidden")

// Service serves one entity kind for authenticated callers
type Service[T model.Entity] struct {
	store  output.RecordStore[T]
	rules  Rules[T]
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a record service
func NewService[T model.Entity](store output.RecordStore[T], rules Rules[T], logger *zap.Logger) *Service[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service[T]{store: store, rules: rules, now: time.Now, logger: logger}
}

// Kind returns the served entity kind
func (s *Service[T]) Kind() model.Kind {
	return s.rules.Kind
}

// List returns every record owned by userID
func (s *Service[T]) List(ctx context.Context, userID string) ([]T, error) {
	items, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s failed: %w", s.rules.Kind, err)
	}
	return items, nil
}

// Get returns a record the caller owns or that is public. Anything else is
// reported as absent.
func (s *Service[T]) Get(ctx context.Context, userID, id string) (T, error) {
	var zero T
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if item.Owner() != userID && !s.public(item) {
		return zero, output.ErrRecordNotFound
	}
	return item, nil
}

// Create stores a new record owned by userID
func (s *Service[T]) Create(ctx context.Context, userID string, in T) (T, error) {
	var zero T
	item, err := s.rules.Prepare(s.rules.Claim(in, userID, s.stamp()))
	if err != nil {
		return zero, err
	}
	if err := s.store.Insert(ctx, item); err != nil {
		return zero, err
	}
	s.logger.Debug("record created", zap.Stringer("kind", s.rules.Kind), zap.String("id", item.EntityID()))
	return item, nil
}

// Update overwrites the content of a record owned by userID
func (s *Service[T]) Update(ctx context.Context, userID, id string, in T) (T, error) {
	now := s.stamp()
	return s.store.Mutate(ctx, id, func(cur T) (T, bool, error) {
		if err := s.checkOwner(cur, userID); err != nil {
			return cur, false, err
		}
		next, err := s.rules.Prepare(s.rules.Merge(cur, in, now))
		if err != nil {
			return cur, false, err
		}
		return next, true, nil
	})
}

// Delete removes a record owned by userID
func (s *Service[T]) Delete(ctx context.Context, userID, id string) error {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwner(cur, userID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Sync merges a client's records into the caller's account. Each item is
// created when absent and overwritten when its updatedAt is strictly newer
// than the stored one; invalid or foreign items are reported per item.
// The answer is the caller's full post-merge set.
func (s *Service[T]) Sync(ctx context.Context, userID string, items []T) (*output.SyncResult[T], error) {
	now := s.stamp()
	res := &output.SyncResult[T]{Errors: []output.ItemError{}}
	written := 0

	for _, in := range items {
		id := in.EntityID()
		if id == "" {
			res.Errors = append(res.Errors, output.ItemError{Error: "id is required"})
			continue
		}
		item, err := s.rules.Prepare(s.rules.Claim(in, userID, now))
		if err != nil {
			res.Errors = append(res.Errors, output.ItemError{ID: id, Error: err.Error()})
			continue
		}

		err = s.store.Insert(ctx, item)
		if err == nil {
			written++
			continue
		}
		if !errors.Is(err, output.ErrRecordExists) {
			return nil, fmt.Errorf("sync %s %s failed: %w", s.rules.Kind, id, err)
		}

		wrote := false
		_, err = s.store.Mutate(ctx, id, func(cur T) (T, bool, error) {
			if cur.Owner() != userID {
				return cur, false, ErrForbidden
			}
			if !item.LastUpdated().After(cur.LastUpdated()) {
				return cur, false, nil
			}
			wrote = true
			return s.rules.Merge(cur, item, now), true, nil
		})
		switch {
		case errors.Is(err, ErrForbidden), errors.Is(err, output.ErrRecordNotFound):
			res.Errors = append(res.Errors, output.ItemError{ID: id, Error: err.Error()})
		case err != nil:
			return nil, fmt.Errorf("sync %s %s failed: %w", s.rules.Kind, id, err)
		case wrote:
			written++
		}
	}

	all, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s failed: %w", s.rules.Kind, err)
	}
	if all == nil {
		all = []T{}
	}
	res.Entities = all

	s.logger.Info("sync merged",
		zap.Stringer("kind", s.rules.Kind),
		zap.String("user_id", userID),
		zap.Int("received", len(items)),
		zap.Int("written", written),
		zap.Int("rejected", len(res.Errors)))
	return res, nil
}

// Reassign moves every record owned by from to the owner to. Content and
// updatedAt are kept.
func (s *Service[T]) Reassign(ctx context.Context, from, to string) (int, error) {
	if from == to {
		return 0, nil
	}
	items, err := s.store.ListByOwner(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("list %s failed: %w", s.rules.Kind, err)
	}
	moved := 0
	for _, item := range items {
		_, err := s.store.Mutate(ctx, item.EntityID(), func(cur T) (T, bool, error) {
			if cur.Owner() != from {
				return cur, false, nil
			}
			moved++
			return s.rules.Claim(cur, to, cur.LastUpdated()), true, nil
		})
		if err != nil && !errors.Is(err, output.ErrRecordNotFound) {
			return moved, fmt.Errorf("reassign %s %s failed: %w", s.rules.Kind, item.EntityID(), err)
		}
	}
	return moved, nil
}

func (s *Service[T]) checkOwner(item T, userID string) error {
	if item.Owner() == userID {
		return nil
	}
	if s.public(item) {
		return ErrForbidden
	}
	return output.ErrRecordNotFound
}

func (s *Service[T]) public(item T) bool {
	return s.rules.Public != nil && s.rules.Public(item)
}

func (s *Service[T]) stamp() time.Time {
	return model.Timestamp(s.now())
}

// Reassigner moves records between owners
type Reassigner interface {
	Reassign(ctx context.Context, from, to string) (int, error)
}

// LinkAccount moves every record of the anonymous identity from to the account to
func LinkAccount(ctx context.Context, from, to string, kinds ...Reassigner) (int, error) {
	if from == "" || to == "" {
		return 0, errors.New("both identities are required")
	}
	total := 0
	for _, k := range kinds {
		n, err := k.Reassign(ctx, from, to)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
