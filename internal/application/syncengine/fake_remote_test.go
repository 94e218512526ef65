package syncengine

import (
	"context"
	"sort"
	"sync"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// memStore is an in-memory server of record for one kind with
// last-writer-wins bulk sync and failure injection
type memStore[T model.Entity] struct {
	mu       sync.Mutex
	items    map[string]T
	err      error
	rejected map[string]string
	onWrite  func()
	calls    map[string]int
}

func newMemStore[T model.Entity]() *memStore[T] {
	return &memStore[T]{items: make(map[string]T), rejected: make(map[string]string), calls: make(map[string]int)}
}

func (s *memStore[T]) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *memStore[T]) get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[id]
	return v, ok
}

func (s *memStore[T]) put(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[v.EntityID()] = v
}

func (s *memStore[T]) enter(op string) error {
	s.mu.Lock()
	s.calls[op]++
	err := s.err
	hook := s.onWrite
	s.mu.Unlock()
	if err == nil && hook != nil && op != "get" {
		hook()
	}
	return err
}

func (s *memStore[T]) GetAll(context.Context) ([]T, error) {
	if err := s.enter("get"); err != nil {
		return nil, err
	}
	return s.all(), nil
}

func (s *memStore[T]) GetByID(_ context.Context, id string) (T, error) {
	var zero T
	if err := s.enter("get"); err != nil {
		return zero, err
	}
	v, ok := s.get(id)
	if !ok {
		return zero, output.ErrRemoteNotFound
	}
	return v, nil
}

func (s *memStore[T]) Create(_ context.Context, entity T) (T, error) {
	var zero T
	if err := s.enter("create"); err != nil {
		return zero, err
	}
	if _, ok := s.get(entity.EntityID()); ok {
		return zero, output.ErrRemoteConflict
	}
	s.put(entity)
	return entity, nil
}

func (s *memStore[T]) Update(_ context.Context, id string, entity T) (T, error) {
	var zero T
	if err := s.enter("update"); err != nil {
		return zero, err
	}
	if _, ok := s.get(id); !ok {
		return zero, output.ErrRemoteNotFound
	}
	s.put(entity)
	return entity, nil
}

func (s *memStore[T]) Delete(_ context.Context, id string) error {
	if err := s.enter("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return output.ErrRemoteNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore[T]) Sync(_ context.Context, entities []T) (*output.SyncResult[T], error) {
	if err := s.enter("sync"); err != nil {
		return nil, err
	}
	res := &output.SyncResult[T]{}
	for _, in := range entities {
		id := in.EntityID()
		s.mu.Lock()
		reason, rejected := s.rejected[id]
		s.mu.Unlock()
		if rejected {
			res.Errors = append(res.Errors, output.ItemError{ID: id, Error: reason})
			continue
		}
		cur, ok := s.get(id)
		if !ok || in.LastUpdated().After(cur.LastUpdated()) {
			s.put(in)
		}
	}
	res.Entities = s.all()
	return res, nil
}

func (s *memStore[T]) all() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

type memRemote struct {
	journeys *memStore[journey.Journey]
	journals *memStore[journal.Journal]
	linked   []string
	linkErr  error
}

func newMemRemote() *memRemote {
	return &memRemote{journeys: newMemStore[journey.Journey](), journals: newMemStore[journal.Journal]()}
}

func (r *memRemote) Journeys() output.RemoteStore[journey.Journey] { return r.journeys }
func (r *memRemote) Journals() output.RemoteStore[journal.Journal] { return r.journals }
func (r *memRemote) Ping(context.Context) error                   { return nil }

func (r *memRemote) LinkAccount(_ context.Context, token string) (int, error) {
	if r.linkErr != nil {
		return 0, r.linkErr
	}
	r.linked = append(r.linked, token)
	return 2, nil
}
