package incidents

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/endpoints"
	"github.com/whitecross/gateway/internal/validation"
)

var Definition = resource.Definition{
	Name:       "incidents",
	Entity:     "incident",
	Collection: endpoints.Incidents,
	Item:       endpoints.IncidentByID,
	PHI:        true,
	Profile:    cache.ProfileShort,
}

type Service struct {
	*resource.Service[Incident]
}

func NewService(deps resource.Deps) *Service {
	return &Service{Service: resource.New[Incident](deps, Definition)}
}

func (s *Service) Create(ctx context.Context, in Input) (*Incident, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Incident, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Update(ctx, id, in)
}

func (s *Service) AddFollowUp(ctx context.Context, id string, in FollowUpInput) (*FollowUp, error) {
	if err := ids.ValidateID(id); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}

	out, err := resource.Send[FollowUp](ctx, s.Client(), http.MethodPost, endpoints.IncidentFollowUps(id), "followUp", in)
	if err != nil {
		s.Record(ctx, "add_follow_up", id, "", err)
		return nil, fmt.Errorf("add follow-up to incident %s: %w", id, err)
	}
	s.Invalidate(id)
	s.Record(ctx, "add_follow_up", id, "", nil)
	return out, nil
}

func (s *Service) ListFollowUps(ctx context.Context, id string, query url.Values) (resource.Page[FollowUp], error) {
	if err := ids.ValidateID(id); err != nil {
		return resource.Page[FollowUp]{}, err
	}
	body, err := s.Fetch(ctx, endpoints.IncidentFollowUps(id), query, cache.ItemTag(Definition.Name, id))
	if err != nil {
		s.Record(ctx, "list_follow_ups", id, "", err)
		return resource.Page[FollowUp]{}, fmt.Errorf("list follow-ups for incident %s: %w", id, err)
	}

	var page resource.Page[FollowUp]
	page.Pagination, err = apiclient.DecodeList(body, "followUps", &page.Items)
	if err != nil {
		return resource.Page[FollowUp]{}, fmt.Errorf("list follow-ups for incident %s: %w", id, err)
	}
	if page.Items == nil {
		page.Items = []FollowUp{}
	}
	s.Record(ctx, "list_follow_ups", id, "", nil)
	return page, nil
}
