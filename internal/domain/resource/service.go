// Package resource is the shared CRUD layer for backend-owned records.
//
// A Service reads through the per-user cache, writes through the backend,
// invalidates cache tags after every mutation and records audit entries.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/audit"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/validation"
)

// ErrConflict is wrapped by business-rule violations detected locally, such
// as an illegal status transition. Handlers answer 409.
var ErrConflict = errors.New("conflict with current state")

// Definition describes one backend collection.
type Definition struct {
	// Name is the collection tag, e.g. "students".
	Name string
	// Entity is the envelope key and audit resource type, e.g. "student".
	Entity string
	// ListKey is the envelope key of list payloads, e.g. "students".
	ListKey    string
	Collection string
	Item       func(id string) string
	PHI        bool
	Profile    cache.Profile
}

// Deps are the collaborators shared by every Service.
type Deps struct {
	Client *apiclient.Client
	Cache  *cache.Cache
	Audit  *audit.Logger
}

// Page is one page of a list response.
type Page[T any] struct {
	Items      []T                  `json:"items"`
	Pagination apiclient.Pagination `json:"pagination"`
}

// StudentScoped records expose the student they belong to for audit entries.
type StudentScoped interface {
	StudentRef() string
}

type Service[T any] struct {
	def    Definition
	client *apiclient.Client
	cache  *cache.Cache
	audit  *audit.Logger
}

func New[T any](deps Deps, def Definition) *Service[T] {
	if def.ListKey == "" {
		def.ListKey = def.Name
	}
	return &Service[T]{def: def, client: deps.Client, cache: deps.Cache, audit: deps.Audit}
}

func (s *Service[T]) Definition() Definition {
	return s.def
}

func (s *Service[T]) Client() *apiclient.Client {
	return s.client
}

func (s *Service[T]) List(ctx context.Context, query url.Values) (Page[T], error) {
	body, err := s.Fetch(ctx, s.def.Collection, query, cache.CollectionTag(s.def.Name))
	if err != nil {
		s.Record(ctx, "list", "", "", err)
		return Page[T]{}, fmt.Errorf("list %s: %w", s.def.Name, err)
	}

	var page Page[T]
	page.Pagination, err = apiclient.DecodeList(body, s.def.ListKey, &page.Items)
	if err != nil {
		return Page[T]{}, fmt.Errorf("list %s: %w", s.def.Name, err)
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	s.Record(ctx, "list", "", query.Get("studentId"), nil)
	return page, nil
}

func (s *Service[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ids.ValidateID(id); err != nil {
		return nil, err
	}
	body, err := s.Fetch(ctx, s.def.Item(id), nil, cache.ItemTag(s.def.Name, id))
	if err != nil {
		s.Record(ctx, "view", id, "", err)
		return nil, fmt.Errorf("get %s %s: %w", s.def.Entity, id, err)
	}

	out := new(T)
	if err := apiclient.DecodeData(body, s.def.Entity, out); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", s.def.Entity, id, err)
	}
	s.Record(ctx, "view", id, studentOf(out), nil)
	return out, nil
}

// Reload drops any cached copy of id and reads it from the backend. Use it
// before enforcing a rule that depends on current state.
func (s *Service[T]) Reload(ctx context.Context, id string) (*T, error) {
	if err := ids.ValidateID(id); err != nil {
		return nil, err
	}
	s.cache.InvalidateTag(cache.ItemTag(s.def.Name, id))
	return s.Get(ctx, id)
}

func (s *Service[T]) Create(ctx context.Context, input any) (*T, error) {
	out, err := Send[T](ctx, s.client, http.MethodPost, s.def.Collection, s.def.Entity, input)
	if err != nil {
		s.Record(ctx, "create", "", studentOf(input), err)
		return nil, fmt.Errorf("create %s: %w", s.def.Entity, err)
	}
	s.Invalidate("")
	s.Record(ctx, "create", idOf(out), studentOf(out), nil)
	return out, nil
}

func (s *Service[T]) Update(ctx context.Context, id string, input any) (*T, error) {
	if err := ids.ValidateID(id); err != nil {
		return nil, err
	}
	out, err := Send[T](ctx, s.client, http.MethodPut, s.def.Item(id), s.def.Entity, input)
	if err != nil {
		s.Record(ctx, "update", id, studentOf(input), err)
		return nil, fmt.Errorf("update %s %s: %w", s.def.Entity, id, err)
	}
	s.Invalidate(id)
	s.Record(ctx, "update", id, studentOf(out), nil)
	return out, nil
}

func (s *Service[T]) Delete(ctx context.Context, id string) error {
	if err := ids.ValidateID(id); err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, s.def.Item(id)); err != nil {
		s.Record(ctx, "delete", id, "", err)
		return fmt.Errorf("delete %s %s: %w", s.def.Entity, id, err)
	}
	s.Invalidate(id)
	s.Record(ctx, "delete", id, "", nil)
	return nil
}

// Action POSTs body to an item sub-path (e.g. /appointments/{id}/cancel) and
// decodes the updated record.
func (s *Service[T]) Action(ctx context.Context, id, action, path string, body any) (*T, error) {
	if err := ids.ValidateID(id); err != nil {
		return nil, err
	}
	out, err := Send[T](ctx, s.client, http.MethodPost, path, s.def.Entity, body)
	if err != nil {
		s.Record(ctx, action, id, "", err)
		return nil, fmt.Errorf("%s %s %s: %w", action, s.def.Entity, id, err)
	}
	s.Invalidate(id)
	s.Record(ctx, action, id, studentOf(out), nil)
	return out, nil
}

// Fetch GETs path through the caller's cache partition. Anonymous reads and
// realtime profiles bypass the cache.
func (s *Service[T]) Fetch(ctx context.Context, path string, query url.Values, tags ...string) ([]byte, error) {
	subject := auth.Subject(ctx)
	cacheable := s.cache != nil && subject != "" && cache.TTL(s.def.Profile) > 0

	var key string
	if cacheable {
		key = cache.Key(subject, http.MethodGet, path, query)
		if body, ok := s.cache.Get(key); ok {
			return body, nil
		}
	}

	resp, err := s.client.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Set(key, resp.Body, s.def.Profile, tags...)
	}
	return resp.Body, nil
}

// Invalidate drops cached lists of this collection and, when id is set, the item.
func (s *Service[T]) Invalidate(id string) {
	s.cache.InvalidateTag(cache.CollectionTag(s.def.Name))
	if id != "" {
		s.cache.InvalidateTag(cache.ItemTag(s.def.Name, id))
	}
}

// Record writes an audit entry for action. Reads of non-PHI records are not
// audited; every write is.
func (s *Service[T]) Record(ctx context.Context, action, id, studentID string, err error) {
	if s.audit == nil || (!s.def.PHI && isRead(action)) {
		return
	}
	entry := audit.FromContext(ctx, s.def.Entity+"."+action, s.def.Entity, id)
	entry.IsPHI = s.def.PHI
	entry.StudentID = studentID
	if err != nil {
		entry.Status = audit.StatusFailure
		entry.Details = map[string]string{"error": Reason(err)}
	}
	s.audit.Log(ctx, entry)
}

// Send issues a write and decodes the enveloped record under key.
func Send[R any](ctx context.Context, client *apiclient.Client, method, path, key string, body any) (*R, error) {
	resp, err := client.Do(ctx, apiclient.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	out := new(R)
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := apiclient.DecodeData(resp.Body, key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reason summarizes err for audit details without leaking record content.
func Reason(err error) string {
	var fe validation.FieldErrors
	var apiErr *apiclient.APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return string(apiErr.Category)
	case errors.As(err, &fe):
		return string(apiclient.CategoryValidation)
	case errors.Is(err, ErrConflict):
		return string(apiclient.CategoryConflict)
	case errors.Is(err, ids.ErrInvalidID):
		return "invalid_id"
	default:
		return "local"
	}
}

func isRead(action string) bool {
	return action == "view" || strings.HasPrefix(action, "list")
}

func studentOf(v any) string {
	if scoped, ok := v.(StudentScoped); ok {
		return scoped.StudentRef()
	}
	return ""
}

type identified interface {
	Identifier() string
}

func idOf(v any) string {
	if rec, ok := v.(identified); ok {
		return rec.Identifier()
	}
	return ""
}
