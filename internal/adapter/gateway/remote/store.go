package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// store is the endpoint set of one entity kind
type store[T model.Entity] struct {
	client *Client
	path   string
}

func (s *store[T]) item(id string) string {
	return s.path + "/" + url.PathEscape(id)
}

func (s *store[T]) GetAll(ctx context.Context) ([]T, error) {
	var out []T
	if err := s.client.do(ctx, http.MethodGet, s.path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store[T]) GetByID(ctx context.Context, id string) (T, error) {
	var out T
	err := s.client.do(ctx, http.MethodGet, s.item(id), nil, &out)
	return out, err
}

func (s *store[T]) Create(ctx context.Context, entity T) (T, error) {
	var out T
	err := s.client.do(ctx, http.MethodPost, s.path, entity, &out)
	return out, err
}

func (s *store[T]) Update(ctx context.Context, id string, entity T) (T, error) {
	var out T
	err := s.client.do(ctx, http.MethodPatch, s.item(id), entity, &out)
	return out, err
}

func (s *store[T]) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, s.item(id), nil, nil)
}

type syncRequest[T model.Entity] struct {
	Items []T `json:"items"`
}

func (s *store[T]) Sync(ctx context.Context, entities []T) (*output.SyncResult[T], error) {
	if entities == nil {
		entities = []T{}
	}
	var out output.SyncResult[T]
	if err := s.client.do(ctx, http.MethodPost, s.path+"/sync", syncRequest[T]{Items: entities}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
