package incidents

import (
	"strings"

	"github.com/whitecross/gateway/internal/sanitize"
)

type Type string

const (
	TypeInjury           Type = "INJURY"
	TypeIllness          Type = "ILLNESS"
	TypeBehavioral       Type = "BEHAVIORAL"
	TypeMedicationError  Type = "MEDICATION_ERROR"
	TypeAllergicReaction Type = "ALLERGIC_REACTION"
	TypeEmergency        Type = "EMERGENCY"
	TypeOther            Type = "OTHER"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Incident struct {
	ID             string   `json:"id"`
	StudentID      string   `json:"studentId"`
	IncidentType   Type     `json:"incidentType"`
	Severity       Severity `json:"severity"`
	OccurredAt     string   `json:"occurredAt"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description"`
	ActionsTaken   string   `json:"actionsTaken,omitempty"`
	ParentNotified bool     `json:"parentNotified"`
	ReportedBy     string   `json:"reportedBy,omitempty"`
	CreatedAt      string   `json:"createdAt,omitempty"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

func (i Incident) StudentRef() string { return i.StudentID }
func (i Incident) Identifier() string { return i.ID }

type Input struct {
	StudentID      string   `json:"studentId" validate:"required,uuid"`
	IncidentType   Type     `json:"incidentType" validate:"required,oneof=INJURY ILLNESS BEHAVIORAL MEDICATION_ERROR ALLERGIC_REACTION EMERGENCY OTHER"`
	Severity       Severity `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	OccurredAt     string   `json:"occurredAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00,notfuture"`
	Location       string   `json:"location,omitempty" validate:"max=200"`
	Description    string   `json:"description" validate:"required,min=10,max=5000"`
	ActionsTaken   string   `json:"actionsTaken,omitempty" validate:"max=2000"`
	ParentNotified bool     `json:"parentNotified"`
}

func (in Input) StudentRef() string { return in.StudentID }

func (in *Input) Normalize() {
	in.StudentID = strings.ToLower(strings.TrimSpace(in.StudentID))
	in.IncidentType = Type(strings.ToUpper(strings.TrimSpace(string(in.IncidentType))))
	in.Severity = Severity(strings.ToUpper(strings.TrimSpace(string(in.Severity))))
	in.OccurredAt = strings.TrimSpace(in.OccurredAt)
	in.Location = sanitize.Text(in.Location)
	in.Description = sanitize.Notes(in.Description)
	in.ActionsTaken = sanitize.Notes(in.ActionsTaken)
}

type FollowUp struct {
	ID          string `json:"id"`
	IncidentID  string `json:"incidentId"`
	Note        string `json:"note"`
	FollowUpAt  string `json:"followUpAt,omitempty"`
	CompletedBy string `json:"completedBy,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

type FollowUpInput struct {
	Note        string `json:"note" validate:"required,min=3,max=2000"`
	FollowUpAt  string `json:"followUpAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CompletedBy string `json:"completedBy,omitempty" validate:"omitempty,uuid"`
}

func (in *FollowUpInput) Normalize() {
	in.Note = sanitize.Notes(in.Note)
	in.FollowUpAt = strings.TrimSpace(in.FollowUpAt)
	in.CompletedBy = strings.ToLower(strings.TrimSpace(in.CompletedBy))
}
