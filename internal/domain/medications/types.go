package medications

import (
	"fmt"
	"strings"

	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/sanitize"
	"github.com/whitecross/gateway/internal/validation"
)

// ErrOutsideSchedule is returned when an administration falls outside the
// medication's start and end dates.
var ErrOutsideSchedule = fmt.Errorf("%w: administration outside medication schedule", resource.ErrConflict)

type Route string

const (
	RouteOral       Route = "ORAL"
	RouteTopical    Route = "TOPICAL"
	RouteInhaled    Route = "INHALED"
	RouteInjection  Route = "INJECTION"
	RouteSublingual Route = "SUBLINGUAL"
	RouteNasal      Route = "NASAL"
	RouteOphthalmic Route = "OPHTHALMIC"
	RouteOtic       Route = "OTIC"
	RouteRectal     Route = "RECTAL"
	RouteOther      Route = "OTHER"
)

type Medication struct {
	ID             string `json:"id"`
	StudentID      string `json:"studentId"`
	MedicationName string `json:"medicationName"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Route          Route  `json:"route"`
	Instructions   string `json:"instructions,omitempty"`
	PrescribedBy   string `json:"prescribedBy,omitempty"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate,omitempty"`
	IsActive       bool   `json:"isActive"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

func (m Medication) StudentRef() string { return m.StudentID }
func (m Medication) Identifier() string { return m.ID }

type Input struct {
	StudentID      string `json:"studentId" validate:"required,uuid"`
	MedicationName string `json:"medicationName" validate:"required,min=1,max=200"`
	Dosage         string `json:"dosage" validate:"required,min=1,max=100"`
	Frequency      string `json:"frequency" validate:"required,min=1,max=100"`
	Route          Route  `json:"route" validate:"required,oneof=ORAL TOPICAL INHALED INJECTION SUBLINGUAL NASAL OPHTHALMIC OTIC RECTAL OTHER"`
	Instructions   string `json:"instructions,omitempty" validate:"max=2000"`
	PrescribedBy   string `json:"prescribedBy,omitempty" validate:"max=200"`
	StartDate      string `json:"startDate" validate:"required,isodate"`
	EndDate        string `json:"endDate,omitempty" validate:"omitempty,isodate"`
}

func (in Input) StudentRef() string { return in.StudentID }

func (in *Input) Normalize() {
	in.StudentID = strings.ToLower(strings.TrimSpace(in.StudentID))
	in.MedicationName = sanitize.Text(in.MedicationName)
	in.Dosage = sanitize.Text(in.Dosage)
	in.Frequency = sanitize.Text(in.Frequency)
	in.Route = Route(strings.ToUpper(strings.TrimSpace(string(in.Route))))
	in.Instructions = sanitize.Notes(in.Instructions)
	in.PrescribedBy = sanitize.Text(in.PrescribedBy)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
}

func (in *Input) Check() validation.FieldErrors {
	if in.EndDate == "" {
		return nil
	}
	start, err := validation.ParseDate(in.StartDate)
	if err != nil {
		return nil
	}
	end, err := validation.ParseDate(in.EndDate)
	if err != nil {
		return nil
	}
	if end.Before(start) {
		return validation.FieldErrors{"endDate": "must not be before startDate"}
	}
	return nil
}

type Administration struct {
	ID             string `json:"id"`
	MedicationID   string `json:"medicationId"`
	StudentID      string `json:"studentId"`
	AdministeredAt string `json:"administeredAt"`
	DosageGiven    string `json:"dosageGiven"`
	AdministeredBy string `json:"administeredBy,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type AdministrationInput struct {
	AdministeredAt string `json:"administeredAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00,notfuture"`
	DosageGiven    string `json:"dosageGiven" validate:"required,min=1,max=100"`
	Notes          string `json:"notes,omitempty" validate:"max=2000"`
}

func (in *AdministrationInput) Normalize() {
	in.AdministeredAt = strings.TrimSpace(in.AdministeredAt)
	in.DosageGiven = sanitize.Text(in.DosageGiven)
	in.Notes = sanitize.Notes(in.Notes)
}

// administrationRequest is what the backend receives; the medication and
// student come from the stored medication, never from the caller.
type administrationRequest struct {
	MedicationID   string `json:"medicationId"`
	StudentID      string `json:"studentId"`
	AdministeredAt string `json:"administeredAt"`
	DosageGiven    string `json:"dosageGiven"`
	Notes          string `json:"notes,omitempty"`
}
