package healthrecords

import (
	"strings"

	"github.com/whitecross/gateway/internal/sanitize"
)

type RecordType string

const (
	TypeCheckup          RecordType = "CHECKUP"
	TypeVaccination      RecordType = "VACCINATION"
	TypeIllness          RecordType = "ILLNESS"
	TypeInjury           RecordType = "INJURY"
	TypeScreening        RecordType = "SCREENING"
	TypePhysicalExam     RecordType = "PHYSICAL_EXAM"
	TypeAllergy          RecordType = "ALLERGY"
	TypeChronicCondition RecordType = "CHRONIC_CONDITION"
	TypeOther            RecordType = "OTHER"
)

type HealthRecord struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"studentId"`
	RecordType     RecordType `json:"recordType"`
	RecordDate     string     `json:"recordDate"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Provider       string     `json:"provider,omitempty"`
	IsConfidential bool       `json:"isConfidential"`
	CreatedAt      string     `json:"createdAt,omitempty"`
	UpdatedAt      string     `json:"updatedAt,omitempty"`
}

func (h HealthRecord) StudentRef() string { return h.StudentID }
func (h HealthRecord) Identifier() string { return h.ID }

type Input struct {
	StudentID      string     `json:"studentId" validate:"required,uuid"`
	RecordType     RecordType `json:"recordType" validate:"required,oneof=CHECKUP VACCINATION ILLNESS INJURY SCREENING PHYSICAL_EXAM ALLERGY CHRONIC_CONDITION OTHER"`
	RecordDate     string     `json:"recordDate" validate:"required,isodate,notfuture"`
	Title          string     `json:"title" validate:"required,min=1,max=200"`
	Description    string     `json:"description,omitempty" validate:"max=5000"`
	Provider       string     `json:"provider,omitempty" validate:"max=200"`
	IsConfidential bool       `json:"isConfidential"`
}

func (in Input) StudentRef() string { return in.StudentID }

func (in *Input) Normalize() {
	in.StudentID = strings.ToLower(strings.TrimSpace(in.StudentID))
	in.RecordType = RecordType(strings.ToUpper(strings.TrimSpace(string(in.RecordType))))
	in.RecordDate = strings.TrimSpace(in.RecordDate)
	in.Title = sanitize.Text(in.Title)
	in.Description = sanitize.Notes(in.Description)
	in.Provider = sanitize.Text(in.Provider)
}
