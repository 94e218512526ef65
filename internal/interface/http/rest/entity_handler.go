package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/usecase/record"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/infrastructure/auth"
)

// entityHandler serves the endpoints of one entity kind
type entityHandler[T model.Entity] struct {
	service *record.Service[T]
	logger  *zap.Logger
}

func newEntityHandler[T model.Entity](service *record.Service[T], logger *zap.Logger) *entityHandler[T] {
	return &entityHandler[T]{service: service, logger: logger.With(zap.Stringer("kind", service.Kind()))}
}

type entityRoutes interface {
	list(w http.ResponseWriter, r *http.Request)
	get(w http.ResponseWriter, r *http.Request)
	create(w http.ResponseWriter, r *http.Request)
	update(w http.ResponseWriter, r *http.Request)
	remove(w http.ResponseWriter, r *http.Request)
	sync(w http.ResponseWriter, r *http.Request)
}

func mountEntity(r chi.Router, path string, h entityRoutes) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/sync", h.sync)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

func userID(r *http.Request) string {
	claims, _ := auth.ClaimsFrom(r.Context())
	return claims.UserID()
}

func (h *entityHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *entityHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *entityHandler[T]) create(w http.ResponseWriter, r *http.Request) {
	var in T
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.EntityID() == "" {
		writeFieldError(w, "id", "is required")
		return
	}
	item, err := h.service.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *entityHandler[T]) update(w http.ResponseWriter, r *http.Request) {
	var in T
	if !decodeJSON(w, r, &in) {
		return
	}
	id := chi.URLParam(r, "id")
	if in.EntityID() != "" && in.EntityID() != id {
		writeFieldError(w, "id", "does not match the path")
		return
	}
	item, err := h.service.Update(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *entityHandler[T]) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type syncRequest[T model.Entity] struct {
	Items []T `json:"items" validate:"max=10000"`
}

func (h *entityHandler[T]) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest[T]
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	res, err := h.service.Sync(r.Context(), userID(r), req.Items)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
