package students

import (
	"encoding/json"
	"strings"

	"github.com/whitecross/gateway/internal/sanitize"
)

type Gender string

const (
	GenderMale           Gender = "MALE"
	GenderFemale         Gender = "FEMALE"
	GenderOther          Gender = "OTHER"
	GenderPreferNotToSay Gender = "PREFER_NOT_TO_SAY"
)

type Student struct {
	ID            string `json:"id"`
	StudentNumber string `json:"studentNumber"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	DateOfBirth   string `json:"dateOfBirth"`
	Gender        Gender `json:"gender"`
	Grade         string `json:"grade"`
	SchoolID      string `json:"schoolId"`
	IsActive      bool   `json:"isActive"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

func (s Student) StudentRef() string { return s.ID }
func (s Student) Identifier() string { return s.ID }

// Input is the create and update payload.
type Input struct {
	StudentNumber string `json:"studentNumber" validate:"required,studentnumber"`
	FirstName     string `json:"firstName" validate:"required,min=1,max=100"`
	LastName      string `json:"lastName" validate:"required,min=1,max=100"`
	DateOfBirth   string `json:"dateOfBirth" validate:"required,isodate,notfuture"`
	Gender        Gender `json:"gender" validate:"required,oneof=MALE FEMALE OTHER PREFER_NOT_TO_SAY"`
	Grade         string `json:"grade" validate:"required,min=1,max=10"`
	SchoolID      string `json:"schoolId" validate:"required,uuid"`
}

func (in *Input) Normalize() {
	in.StudentNumber = strings.ToUpper(strings.TrimSpace(in.StudentNumber))
	in.FirstName = sanitize.Text(in.FirstName)
	in.LastName = sanitize.Text(in.LastName)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Gender = Gender(strings.ToUpper(strings.TrimSpace(string(in.Gender))))
	in.Grade = sanitize.Text(in.Grade)
	in.SchoolID = strings.ToLower(strings.TrimSpace(in.SchoolID))
}

type SectionStatus string

const (
	SectionOK          SectionStatus = "ok"
	SectionUnavailable SectionStatus = "unavailable"
)

// Section is one related collection in a Summary. Items are passed through
// as the backend sent them.
type Section struct {
	Status SectionStatus     `json:"status"`
	Items  []json.RawMessage `json:"items"`
	Total  int               `json:"total"`
}

// Summary is the student dashboard payload.
type Summary struct {
	Student              *Student `json:"student"`
	HealthRecords        Section  `json:"healthRecords"`
	ActiveMedications    Section  `json:"activeMedications"`
	UpcomingAppointments Section  `json:"upcomingAppointments"`
	RecentIncidents      Section  `json:"recentIncidents"`
}
