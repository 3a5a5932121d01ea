package appointments

import (
	"fmt"
	"strings"

	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/sanitize"
)

// ErrInvalidTransition is returned when an appointment cannot move to the
// requested status from its current one.
var ErrInvalidTransition = fmt.Errorf("%w: invalid appointment status transition", resource.ErrConflict)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

var Statuses = []string{
	string(StatusScheduled),
	string(StatusInProgress),
	string(StatusCompleted),
	string(StatusCancelled),
	string(StatusNoShow),
}

type Type string

const (
	TypeRoutineCheckup           Type = "ROUTINE_CHECKUP"
	TypeMedicationAdministration Type = "MEDICATION_ADMINISTRATION"
	TypeInjuryAssessment         Type = "INJURY_ASSESSMENT"
	TypeIllnessEvaluation        Type = "ILLNESS_EVALUATION"
	TypeFollowUp                 Type = "FOLLOW_UP"
	TypeScreening                Type = "SCREENING"
	TypeEmergency                Type = "EMERGENCY"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransition reports whether an appointment may move from one status to
// another. Only open appointments (scheduled or in progress) may be closed.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusInProgress:
		return from == StatusScheduled
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return from == StatusScheduled || from == StatusInProgress
	default:
		return false
	}
}

type Appointment struct {
	ID              string `json:"id"`
	StudentID       string `json:"studentId"`
	NurseID         string `json:"nurseId,omitempty"`
	AppointmentType Type   `json:"appointmentType"`
	ScheduledAt     string `json:"scheduledAt"`
	Duration        int    `json:"duration"`
	Status          Status `json:"status"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

func (a Appointment) StudentRef() string { return a.StudentID }
func (a Appointment) Identifier() string { return a.ID }

type Input struct {
	StudentID       string `json:"studentId" validate:"required,uuid"`
	NurseID         string `json:"nurseId,omitempty" validate:"omitempty,uuid"`
	AppointmentType Type   `json:"appointmentType" validate:"required,oneof=ROUTINE_CHECKUP MEDICATION_ADMINISTRATION INJURY_ASSESSMENT ILLNESS_EVALUATION FOLLOW_UP SCREENING EMERGENCY"`
	ScheduledAt     string `json:"scheduledAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Duration        int    `json:"duration" validate:"required,min=5,max=240"`
	Reason          string `json:"reason" validate:"required,min=3,max=500"`
	Notes           string `json:"notes,omitempty" validate:"max=2000"`
}

func (in Input) StudentRef() string { return in.StudentID }

func (in *Input) Normalize() {
	in.StudentID = strings.ToLower(strings.TrimSpace(in.StudentID))
	in.NurseID = strings.ToLower(strings.TrimSpace(in.NurseID))
	in.AppointmentType = Type(strings.ToUpper(strings.TrimSpace(string(in.AppointmentType))))
	in.ScheduledAt = strings.TrimSpace(in.ScheduledAt)
	in.Reason = sanitize.Text(in.Reason)
	in.Notes = sanitize.Notes(in.Notes)
}

// CancelInput is the cancel payload.
type CancelInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

func (in *CancelInput) Normalize() {
	in.Reason = sanitize.Text(in.Reason)
}

// CompleteInput is the complete payload.
type CompleteInput struct {
	Notes string `json:"notes,omitempty" validate:"max=2000"`
}

func (in *CompleteInput) Normalize() {
	in.Notes = sanitize.Notes(in.Notes)
}
