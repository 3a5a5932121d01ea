package medications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/endpoints"
	"github.com/whitecross/gateway/internal/validation"
)

var Definition = resource.Definition{
	Name:       "medications",
	Entity:     "medication",
	Collection: endpoints.Medications,
	Item:       endpoints.MedicationByID,
	PHI:        true,
	Profile:    cache.ProfileShort,
}

type Service struct {
	*resource.Service[Medication]
}

func NewService(deps resource.Deps) *Service {
	return &Service{Service: resource.New[Medication](deps, Definition)}
}

func (s *Service) Create(ctx context.Context, in Input) (*Medication, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Medication, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Update(ctx, id, in)
}

// RecordAdministration records a dose given under medication id. The dose
// must fall on a day between the medication's start and end dates.
func (s *Service) RecordAdministration(ctx context.Context, id string, in AdministrationInput) (*Administration, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	med, err := s.Reload(ctx, id)
	if err != nil {
		return nil, err
	}

	at, _ := time.Parse(time.RFC3339, in.AdministeredAt)
	if err := withinSchedule(med, at); err != nil {
		s.Record(ctx, "administer", id, med.StudentID, err)
		return nil, err
	}

	req := administrationRequest{
		MedicationID:   med.ID,
		StudentID:      med.StudentID,
		AdministeredAt: in.AdministeredAt,
		DosageGiven:    in.DosageGiven,
		Notes:          in.Notes,
	}
	out, err := resource.Send[Administration](ctx, s.Client(), http.MethodPost,
		endpoints.MedicationAdministrations(id), "administration", req)
	if err != nil {
		s.Record(ctx, "administer", id, med.StudentID, err)
		return nil, fmt.Errorf("record administration for medication %s: %w", id, err)
	}
	s.Invalidate(id)
	s.Record(ctx, "administer", id, med.StudentID, nil)
	return out, nil
}

func (s *Service) ListAdministrations(ctx context.Context, id string, query url.Values) (resource.Page[Administration], error) {
	if err := ids.ValidateID(id); err != nil {
		return resource.Page[Administration]{}, err
	}
	body, err := s.Fetch(ctx, endpoints.MedicationAdministrations(id), query,
		cache.ItemTag(Definition.Name, id))
	if err != nil {
		s.Record(ctx, "list_administrations", id, "", err)
		return resource.Page[Administration]{}, fmt.Errorf("list administrations for medication %s: %w", id, err)
	}

	var page resource.Page[Administration]
	page.Pagination, err = apiclient.DecodeList(body, "administrations", &page.Items)
	if err != nil {
		return resource.Page[Administration]{}, fmt.Errorf("list administrations for medication %s: %w", id, err)
	}
	if page.Items == nil {
		page.Items = []Administration{}
	}
	studentID := ""
	if len(page.Items) > 0 {
		studentID = page.Items[0].StudentID
	}
	s.Record(ctx, "list_administrations", id, studentID, nil)
	return page, nil
}

// withinSchedule compares calendar days in the timestamp's own offset, so a
// dose at 23:30 local time on the end date is still in schedule.
func withinSchedule(med *Medication, at time.Time) error {
	day, _ := time.Parse(validation.DateLayout, at.Format(validation.DateLayout))

	if start, err := validation.ParseDate(med.StartDate); err == nil {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(start) {
			return fmt.Errorf("%w: %s is before start date %s", ErrOutsideSchedule, day.Format(validation.DateLayout), med.StartDate)
		}
	}
	if med.EndDate == "" {
		return nil
	}
	if end, err := validation.ParseDate(med.EndDate); err == nil {
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
		if day.After(end) {
			return fmt.Errorf("%w: %s is after end date %s", ErrOutsideSchedule, day.Format(validation.DateLayout), med.EndDate)
		}
	}
	return nil
}
