package healthrecords

import (
	"context"
	"net/url"

	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/endpoints"
	"github.com/whitecross/gateway/internal/validation"
)

var Definition = resource.Definition{
	Name:       "health_records",
	Entity:     "healthRecord",
	ListKey:    "healthRecords",
	Collection: endpoints.HealthRecords,
	Item:       endpoints.HealthRecordByID,
	PHI:        true,
	Profile:    cache.ProfileShort,
}

type Service struct {
	*resource.Service[HealthRecord]
}

func NewService(deps resource.Deps) *Service {
	return &Service{Service: resource.New[HealthRecord](deps, Definition)}
}

func (s *Service) Create(ctx context.Context, in Input) (*HealthRecord, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*HealthRecord, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Update(ctx, id, in)
}

// ListByStudent lists one student's records. query may carry paging and
// filters; its studentId is replaced.
func (s *Service) ListByStudent(ctx context.Context, studentID string, query url.Values) (resource.Page[HealthRecord], error) {
	if err := ids.ValidateID(studentID); err != nil {
		return resource.Page[HealthRecord]{}, err
	}
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("studentId", studentID)
	return s.List(ctx, q)
}
