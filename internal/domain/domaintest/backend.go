// Package domaintest wires domain services to an in-process fake backend.
package domaintest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/audit"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/testauth"
)

// Call is one request received by the fake backend.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Auth   string
}

// Decode unmarshals the request body into out.
func (c Call) Decode(t testing.TB, out any) {
	t.Helper()
	if err := json.Unmarshal(c.Body, out); err != nil {
		t.Fatalf("decode %s %s body: %v", c.Method, c.Path, err)
	}
}

// Backend is a fake REST backend. Routes are keyed by "METHOD /path"
// relative to the API root; unknown routes answer 404.
type Backend struct {
	Server *httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []Call
}

func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{routes: make(map[string]http.HandlerFunc)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API root to hand to apiclient.New.
func (b *Backend) URL() string {
	return b.Server.URL + "/api/v1"
}

func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = h
}

// JSON registers a route answering status with v encoded as JSON.
func (b *Backend) JSON(method, path string, status int, v any) {
	b.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, v)
	})
}

// Data registers a route answering 200 with {"success":true,"data":{key: v}}.
func (b *Backend) Data(method, path, key string, v any) {
	b.JSON(method, path, http.StatusOK, Envelope(key, v))
}

// Calls returns a copy of every request received so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the requests received for method and path.
func (b *Backend) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")

	b.mu.Lock()
	b.calls = append(b.calls, Call{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Body:   body,
		Auth:   r.Header.Get("Authorization"),
	})
	h, ok := b.routes[r.Method+" "+path]
	b.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   map[string]any{"message": "not found"},
		})
		return
	}
	h(w, r)
}

// Envelope wraps v the way the backend wraps single records.
func Envelope(key string, v any) map[string]any {
	data := any(v)
	if key != "" {
		data = map[string]any{key: v}
	}
	return map[string]any{"success": true, "data": data}
}

// ListEnvelope wraps items the way the backend wraps list payloads.
func ListEnvelope(key string, items any, total int) map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			key:          items,
			"pagination": apiclient.Pagination{Page: 1, Limit: 20, Total: total, TotalPages: 1},
		},
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Sink records audit entries in memory.
type Sink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *Sink) Send(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Sink) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

// Actions lists the audited actions in order.
func (s *Sink) Actions() []string {
	var out []string
	for _, e := range s.Entries() {
		out = append(out, e.Action)
	}
	return out
}

// Last returns the most recent entry, or a zero Entry.
func (s *Sink) Last() audit.Entry {
	entries := s.Entries()
	if len(entries) == 0 {
		return audit.Entry{}
	}
	return entries[len(entries)-1]
}

// Env bundles a fake backend with the dependencies domain services take.
type Env struct {
	Backend *Backend
	Sink    *Sink
	Deps    resource.Deps
}

func NewEnv(t testing.TB) *Env {
	t.Helper()
	backend := NewBackend(t)
	sink := &Sink{}
	client := apiclient.New(backend.URL(),
		apiclient.WithBackoff(time.Millisecond, 2*time.Millisecond),
		apiclient.WithTimeout(2*time.Second),
		apiclient.WithTokenSource(auth.TokenFromContext),
	)
	return &Env{
		Backend: backend,
		Sink:    sink,
		Deps: resource.Deps{
			Client: client,
			Cache:  cache.New(256),
			Audit:  audit.NewLogger(zerolog.Nop(), audit.WithSink(sink)),
		},
	}
}

// Context returns a session context for subject acting with role.
func Context(subject string, role auth.Role) context.Context {
	return testauth.Session(context.Background(), subject, role)
}
