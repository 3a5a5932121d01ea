package resource_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/audit"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/domaintest"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/validation"
)

const (
	noteID    = "6f1c2d3e-4b5a-4c6d-8e7f-90a1b2c3d4e5"
	studentID = "0b1c2d3e-4f5a-4b6c-9d7e-8f9a0b1c2d3e"
)

type note struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	Text      string `json:"text"`
}

func (n note) StudentRef() string { return n.StudentID }
func (n note) Identifier() string { return n.ID }

func newNotes(env *domaintest.Env, phi bool) *resource.Service[note] {
	return resource.New[note](env.Deps, resource.Definition{
		Name:       "notes",
		Entity:     "note",
		Collection: "/notes",
		Item:       func(id string) string { return "/notes/" + id },
		PHI:        phi,
		Profile:    cache.ProfileShort,
	})
}

func TestGet_CachesPerUser(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.Data(http.MethodGet, "/notes/"+noteID, "note", note{ID: noteID, StudentID: studentID, Text: "ok"})
	svc := newNotes(env, true)

	alice := domaintest.Context("alice", auth.RoleNurse)
	bob := domaintest.Context("bob", auth.RoleNurse)

	got, err := svc.Get(alice, noteID)
	require.NoError(t, err)
	require.Equal(t, "ok", got.Text)

	_, err = svc.Get(alice, noteID)
	require.NoError(t, err)
	require.Len(t, env.Backend.CallsTo(http.MethodGet, "/notes/"+noteID), 1)

	_, err = svc.Get(bob, noteID)
	require.NoError(t, err)
	require.Len(t, env.Backend.CallsTo(http.MethodGet, "/notes/"+noteID), 2, "users never share cache entries")

	calls := env.Backend.CallsTo(http.MethodGet, "/notes/"+noteID)
	require.Equal(t, "Bearer test-token-alice", calls[0].Auth)

	entries := env.Sink.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "note.view", entries[0].Action)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, studentID, entries[0].StudentID)
	assert.True(t, entries[0].IsPHI)
}

func TestCreate_InvalidatesListCache(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.JSON(http.MethodGet, "/notes", http.StatusOK, domaintest.ListEnvelope("notes", []note{{ID: noteID}}, 1))
	env.Backend.JSON(http.MethodPost, "/notes", http.StatusCreated, domaintest.Envelope("note", note{ID: noteID, StudentID: studentID}))
	svc := newNotes(env, true)
	ctx := domaintest.Context("alice", auth.RoleNurse)

	page, err := svc.List(ctx, url.Values{"page": {"1"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, 1, page.Pagination.Total)

	_, err = svc.List(ctx, url.Values{"page": {"1"}})
	require.NoError(t, err)
	require.Len(t, env.Backend.CallsTo(http.MethodGet, "/notes"), 1)

	created, err := svc.Create(ctx, map[string]string{"text": "new"})
	require.NoError(t, err)
	require.Equal(t, noteID, created.ID)

	_, err = svc.List(ctx, url.Values{"page": {"1"}})
	require.NoError(t, err)
	require.Len(t, env.Backend.CallsTo(http.MethodGet, "/notes"), 2)

	last := env.Sink.Last()
	require.Equal(t, "note.list", last.Action)
	require.Contains(t, env.Sink.Actions(), "note.create")
}

func TestList_EmptyIsNotNil(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.JSON(http.MethodGet, "/notes", http.StatusOK, domaintest.ListEnvelope("notes", []note{}, 0))
	svc := newNotes(env, false)

	page, err := svc.List(domaintest.Context("alice", auth.RoleAdmin), nil)
	require.NoError(t, err)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
}

func TestGet_InvalidIDNeverCallsBackend(t *testing.T) {
	env := domaintest.NewEnv(t)
	svc := newNotes(env, true)

	_, err := svc.Get(domaintest.Context("alice", auth.RoleNurse), "../students")
	require.ErrorIs(t, err, ids.ErrInvalidID)
	require.Empty(t, env.Backend.Calls())
}

func TestGet_FailureIsAudited(t *testing.T) {
	env := domaintest.NewEnv(t)
	svc := newNotes(env, true)

	_, err := svc.Get(domaintest.Context("alice", auth.RoleNurse), noteID)
	require.Error(t, err)
	require.True(t, apiclient.IsNotFound(err))

	last := env.Sink.Last()
	require.Equal(t, audit.StatusFailure, last.Status)
	require.Equal(t, "not_found", last.Details["error"])
}

func TestNonPHIReadsAreNotAudited(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.Data(http.MethodGet, "/notes/"+noteID, "note", note{ID: noteID})
	env.Backend.Handle(http.MethodDelete, "/notes/"+noteID, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	svc := newNotes(env, false)
	ctx := domaintest.Context("alice", auth.RoleAdmin)

	_, err := svc.Get(ctx, noteID)
	require.NoError(t, err)
	require.Empty(t, env.Sink.Entries())

	require.NoError(t, svc.Delete(ctx, noteID))
	require.Equal(t, []string{"note.delete"}, env.Sink.Actions())
	require.False(t, env.Sink.Last().IsPHI)
}

func TestAnonymousReadsBypassCache(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.Data(http.MethodGet, "/notes/"+noteID, "note", note{ID: noteID})
	svc := newNotes(env, false)

	for i := 0; i < 2; i++ {
		_, err := svc.Get(context.Background(), noteID)
		require.NoError(t, err)
	}
	require.Len(t, env.Backend.CallsTo(http.MethodGet, "/notes/"+noteID), 2)
	require.Zero(t, env.Deps.Cache.Len())
}

func TestReason(t *testing.T) {
	require.Equal(t, "", resource.Reason(nil))
	require.Equal(t, "conflict", resource.Reason(&apiclient.APIError{Category: apiclient.CategoryConflict}))
	require.Equal(t, "validation", resource.Reason(validation.FieldErrors{"name": "is required"}))
	require.Equal(t, "invalid_id", resource.Reason(ids.ErrInvalidID))
	require.Equal(t, "conflict", resource.Reason(fmt.Errorf("%w: paid", resource.ErrConflict)))
	require.Equal(t, "local", resource.Reason(errors.New("boom")))
}

func TestParseListQuery(t *testing.T) {
	out, err := resource.ParseListQuery(url.Values{
		"page":      {"2"},
		"limit":     {"50"},
		"search":    {"  ada  "},
		"studentId": {studentID},
		"status":    {"scheduled"},
		"sort":      {"drop me"},
	}, "SCHEDULED", "COMPLETED")
	require.NoError(t, err)
	require.Equal(t, url.Values{
		"page":      {"2"},
		"limit":     {"50"},
		"search":    {"ada"},
		"studentId": {studentID},
		"status":    {"SCHEDULED"},
	}, out)

	out, err = resource.ParseListQuery(url.Values{})
	require.NoError(t, err)
	require.Equal(t, "1", out.Get("page"))
	require.Equal(t, "20", out.Get("limit"))

	_, err = resource.ParseListQuery(url.Values{
		"page":      {"0"},
		"limit":     {"101"},
		"studentId": {"nope"},
		"status":    {"LOST"},
	}, "SCHEDULED")
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 4)
}
