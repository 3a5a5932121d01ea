package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/whitecross/gateway/internal/domain/resource"
)

// CRUDService is the method set every domain service exposes, I being its
// create/update payload.
type CRUDService[T, I any] interface {
	Definition() resource.Definition
	List(ctx context.Context, query url.Values) (resource.Page[T], error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, in I) (*T, error)
	Update(ctx context.Context, id string, in I) (*T, error)
	Delete(ctx context.Context, id string) error
}

// Collection serves list/get/create/update/delete for one backend resource.
type Collection[T, I any] struct {
	Service CRUDService[T, I]
	// Statuses restricts the status filter; nil accepts any value.
	Statuses []string
	Env      string
	MaxBody  int64
}

func NewCollection[T, I any](service CRUDService[T, I], statuses []string, env string, maxBody int64) *Collection[T, I] {
	return &Collection[T, I]{Service: service, Statuses: statuses, Env: env, MaxBody: maxBody}
}

func (h *Collection[T, I]) List(w http.ResponseWriter, r *http.Request) {
	query, err := resource.ParseListQuery(r.URL.Query(), h.Statuses...)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	page, err := h.Service.List(r.Context(), query)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeList(w, h.Service.Definition().ListKey, page)
}

func (h *Collection[T, I]) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, h.Service.Definition().Entity, item)
}

func (h *Collection[T, I]) Create(w http.ResponseWriter, r *http.Request) {
	var in I
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	item, err := h.Service.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, h.Service.Definition().Entity, item)
}

func (h *Collection[T, I]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	var in I
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	item, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, h.Service.Definition().Entity, item)
}

func (h *Collection[T, I]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), pathParam(r, "id")); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
