package healthrecords

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/domain/domaintest"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/validation"
)

const (
	recordID  = "7a6b5c4d-3e2f-4a1b-9c8d-7e6f5a4b3c2d"
	studentID = "0b1c2d3e-4f5a-4b6c-9d7e-8f9a0b1c2d3e"
)

func TestListByStudent(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.JSON(http.MethodGet, "/health-records", http.StatusOK, domaintest.ListEnvelope("healthRecords",
		[]HealthRecord{{ID: recordID, StudentID: studentID, RecordType: TypeVaccination, Title: "MMR"}}, 1))
	svc := NewService(env.Deps)

	query := url.Values{"studentId": {"ignored"}, "limit": {"10"}}
	page, err := svc.ListByStudent(domaintest.Context("n1", auth.RoleNurse), studentID, query)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, TypeVaccination, page.Items[0].RecordType)
	assert.Equal(t, "ignored", query.Get("studentId"), "caller's query is not mutated")

	calls := env.Backend.CallsTo(http.MethodGet, "/health-records")
	require.Len(t, calls, 1)
	assert.Equal(t, studentID, calls[0].Query.Get("studentId"))
	assert.Equal(t, "10", calls[0].Query.Get("limit"))

	last := env.Sink.Last()
	assert.Equal(t, "healthRecord.list", last.Action)
	assert.Equal(t, studentID, last.StudentID)
	assert.True(t, last.IsPHI)
}

func TestListByStudent_InvalidStudent(t *testing.T) {
	env := domaintest.NewEnv(t)
	svc := NewService(env.Deps)

	_, err := svc.ListByStudent(domaintest.Context("n1", auth.RoleNurse), "42", nil)
	require.ErrorIs(t, err, ids.ErrInvalidID)
	require.Empty(t, env.Backend.Calls())
}

func TestCreate(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.JSON(http.MethodPost, "/health-records", http.StatusCreated,
		domaintest.Envelope("healthRecord", HealthRecord{ID: recordID, StudentID: studentID}))
	svc := NewService(env.Deps)
	ctx := domaintest.Context("n1", auth.RoleNurse)

	_, err := svc.Create(ctx, Input{StudentID: studentID, RecordType: "allergy", RecordDate: "2024-02-30", Title: ""})
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "must be a date in YYYY-MM-DD format", fe["recordDate"])
	assert.Equal(t, "is required", fe["title"])
	require.Empty(t, env.Backend.Calls())

	got, err := svc.Create(ctx, Input{
		StudentID:   studentID,
		RecordType:  "allergy",
		RecordDate:  "2024-02-28",
		Title:       "Peanut allergy",
		Description: "<p>Carries epinephrine</p>",
	})
	require.NoError(t, err)
	require.Equal(t, recordID, got.ID)

	var sent Input
	env.Backend.CallsTo(http.MethodPost, "/health-records")[0].Decode(t, &sent)
	assert.Equal(t, TypeAllergy, sent.RecordType)
	assert.Equal(t, "Carries epinephrine", sent.Description)
	assert.Equal(t, "healthRecord.create", env.Sink.Last().Action)
}
