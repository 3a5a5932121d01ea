package students

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/endpoints"
	"github.com/whitecross/gateway/internal/validation"
)

const summarySectionLimit = "5"

var Definition = resource.Definition{
	Name:       "students",
	Entity:     "student",
	Collection: endpoints.Students,
	Item:       endpoints.StudentByID,
	PHI:        true,
	Profile:    cache.ProfileDefault,
}

type Service struct {
	*resource.Service[Student]
}

func NewService(deps resource.Deps) *Service {
	return &Service{Service: resource.New[Student](deps, Definition)}
}

func (s *Service) Create(ctx context.Context, in Input) (*Student, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Student, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Update(ctx, id, in)
}

func (s *Service) Deactivate(ctx context.Context, id string) (*Student, error) {
	return s.Action(ctx, id, "deactivate", endpoints.StudentDeactivate(id), nil)
}

func (s *Service) Reactivate(ctx context.Context, id string) (*Student, error) {
	return s.Action(ctx, id, "reactivate", endpoints.StudentReactivate(id), nil)
}

// Summary loads the student and its related records concurrently. A failed
// student fetch fails the summary; any other failed section is reported as
// unavailable.
func (s *Service) Summary(ctx context.Context, id string) (*Summary, error) {
	if err := ids.ValidateID(id); err != nil {
		return nil, err
	}

	out := &Summary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		student, err := s.Get(gctx, id)
		if err != nil {
			return err
		}
		out.Student = student
		return nil
	})

	sections := []struct {
		dst   *Section
		path  string
		key   string
		query url.Values
	}{
		{&out.HealthRecords, endpoints.HealthRecords, "healthRecords", url.Values{}},
		{&out.ActiveMedications, endpoints.Medications, "medications", url.Values{"status": {"ACTIVE"}}},
		{&out.UpcomingAppointments, endpoints.Appointments, "appointments", url.Values{"status": {"SCHEDULED"}}},
		{&out.RecentIncidents, endpoints.Incidents, "incidents", url.Values{}},
	}
	for _, sec := range sections {
		sec.query.Set("studentId", id)
		sec.query.Set("limit", summarySectionLimit)
		g.Go(func() error {
			*sec.dst = s.section(gctx, sec.path, sec.key, sec.query)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.Record(ctx, "summary", id, id, err)
		return nil, fmt.Errorf("student summary %s: %w", id, err)
	}
	s.Record(ctx, "summary", id, id, nil)
	return out, nil
}

// section reads related records uncached; a summary always reflects the
// backend at request time.
func (s *Service) section(ctx context.Context, path, key string, query url.Values) Section {
	unavailable := Section{Status: SectionUnavailable, Items: []json.RawMessage{}}

	resp, err := s.Client().Get(ctx, path, query)
	if err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("section", key).
			Msg("student summary section unavailable")
		return unavailable
	}

	var items []json.RawMessage
	page, err := apiclient.DecodeList(resp.Body, key, &items)
	if err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("section", key).
			Msg("student summary section undecodable")
		return unavailable
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return Section{Status: SectionOK, Items: items, Total: page.Total}
}
