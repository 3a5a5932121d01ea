package medications

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/domain/domaintest"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/validation"
)

const (
	medicationID = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	studentID    = "0b1c2d3e-4f5a-4b6c-9d7e-8f9a0b1c2d3e"
)

func march() Medication {
	return Medication{
		ID:             medicationID,
		StudentID:      studentID,
		MedicationName: "Albuterol",
		StartDate:      "2025-03-01",
		EndDate:        "2025-03-31",
		IsActive:       true,
	}
}

func TestInputCheck_EndBeforeStart(t *testing.T) {
	in := Input{
		StudentID:      studentID,
		MedicationName: "Albuterol",
		Dosage:         "2 puffs",
		Frequency:      "as needed",
		Route:          "inhaled",
		StartDate:      "2025-03-10",
		EndDate:        "2025-03-01",
	}
	in.Normalize()
	err := validation.Validate(&in)
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Equal(t, validation.FieldErrors{"endDate": "must not be before startDate"}, fe)

	in.EndDate = ""
	require.NoError(t, validation.Validate(&in))
}

func TestRecordAdministration(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.Data(http.MethodGet, "/medications/"+medicationID, "medication", march())
	env.Backend.JSON(http.MethodPost, "/medications/"+medicationID+"/administrations", http.StatusCreated,
		domaintest.Envelope("administration", Administration{ID: "adm-1", MedicationID: medicationID, StudentID: studentID}))
	svc := NewService(env.Deps)

	got, err := svc.RecordAdministration(domaintest.Context("n1", auth.RoleNurse), medicationID, AdministrationInput{
		AdministeredAt: "2025-03-31T23:30:00-05:00",
		DosageGiven:    "2 puffs",
		Notes:          "<b>tolerated well</b>",
	})
	require.NoError(t, err)
	require.Equal(t, "adm-1", got.ID)

	calls := env.Backend.CallsTo(http.MethodPost, "/medications/"+medicationID+"/administrations")
	require.Len(t, calls, 1)
	var sent administrationRequest
	calls[0].Decode(t, &sent)
	assert.Equal(t, studentID, sent.StudentID)
	assert.Equal(t, medicationID, sent.MedicationID)
	assert.Equal(t, "tolerated well", sent.Notes)

	last := env.Sink.Last()
	assert.Equal(t, "medication.administer", last.Action)
	assert.Equal(t, studentID, last.StudentID)
	assert.True(t, last.IsPHI)
}

func TestRecordAdministration_OutsideSchedule(t *testing.T) {
	env := domaintest.NewEnv(t)
	env.Backend.Data(http.MethodGet, "/medications/"+medicationID, "medication", march())
	svc := NewService(env.Deps)
	ctx := domaintest.Context("n1", auth.RoleNurse)

	for _, at := range []string{"2025-02-28T12:00:00Z", "2025-04-01T08:00:00Z"} {
		_, err := svc.RecordAdministration(ctx, medicationID, AdministrationInput{AdministeredAt: at, DosageGiven: "1 tab"})
		require.ErrorIs(t, err, ErrOutsideSchedule, at)
		require.ErrorIs(t, err, resource.ErrConflict, at)
	}
	require.Empty(t, env.Backend.CallsTo(http.MethodPost, "/medications/"+medicationID+"/administrations"))
	assert.Equal(t, "failure", env.Sink.Last().Status)
}

func TestRecordAdministration_FutureTimestamp(t *testing.T) {
	env := domaintest.NewEnv(t)
	svc := NewService(env.Deps)

	future := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	_, err := svc.RecordAdministration(domaintest.Context("n1", auth.RoleNurse), medicationID,
		AdministrationInput{AdministeredAt: future, DosageGiven: "1 tab"})
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "must not be in the future", fe["administeredAt"])
	require.Empty(t, env.Backend.Calls())
}

func TestListAdministrations_CachedUntilNextDose(t *testing.T) {
	env := domaintest.NewEnv(t)
	path := "/medications/" + medicationID + "/administrations"
	env.Backend.Data(http.MethodGet, "/medications/"+medicationID, "medication", march())
	env.Backend.JSON(http.MethodGet, path, http.StatusOK, domaintest.ListEnvelope("administrations",
		[]Administration{{ID: "adm-1", StudentID: studentID}}, 1))
	env.Backend.JSON(http.MethodPost, path, http.StatusCreated, domaintest.Envelope("administration", Administration{ID: "adm-2"}))
	svc := NewService(env.Deps)
	ctx := domaintest.Context("n1", auth.RoleNurse)

	page, err := svc.ListAdministrations(ctx, medicationID, nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	_, err = svc.ListAdministrations(ctx, medicationID, nil)
	require.NoError(t, err)
	require.Len(t, env.Backend.CallsTo(http.MethodGet, path), 1)

	_, err = svc.RecordAdministration(ctx, medicationID, AdministrationInput{AdministeredAt: "2025-03-15T10:00:00Z", DosageGiven: "1 tab"})
	require.NoError(t, err)

	_, err = svc.ListAdministrations(ctx, medicationID, nil)
	require.NoError(t, err)
	require.Len(t, env.Backend.CallsTo(http.MethodGet, path), 2)
	assert.Equal(t, "medication.list_administrations", env.Sink.Last().Action)
}

func TestWithinSchedule_OpenEnded(t *testing.T) {
	med := march()
	med.EndDate = ""
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, withinSchedule(&med, at))
	require.ErrorIs(t, withinSchedule(&med, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)), ErrOutsideSchedule)
}
