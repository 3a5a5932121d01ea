package appointments

import (
	"context"
	"fmt"

	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/endpoints"
	"github.com/whitecross/gateway/internal/validation"
)

var Definition = resource.Definition{
	Name:       "appointments",
	Entity:     "appointment",
	Collection: endpoints.Appointments,
	Item:       endpoints.AppointmentByID,
	PHI:        true,
	Profile:    cache.ProfileShort,
}

type Service struct {
	*resource.Service[Appointment]
}

func NewService(deps resource.Deps) *Service {
	return &Service{Service: resource.New[Appointment](deps, Definition)}
}

func (s *Service) Create(ctx context.Context, in Input) (*Appointment, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Appointment, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Update(ctx, id, in)
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (*Appointment, error) {
	in := CancelInput{Reason: reason}
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusCancelled, "cancel", endpoints.AppointmentCancel(id), in)
}

func (s *Service) Complete(ctx context.Context, id, notes string) (*Appointment, error) {
	in := CompleteInput{Notes: notes}
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusCompleted, "complete", endpoints.AppointmentComplete(id), in)
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, "no_show", endpoints.AppointmentNoShow(id), nil)
}

// transition checks the current status against the backend before asking it
// to move the appointment to the target status.
func (s *Service) transition(ctx context.Context, id string, to Status, action, path string, body any) (*Appointment, error) {
	current, err := s.Reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		err := fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
		s.Record(ctx, action, id, current.StudentID, err)
		return nil, err
	}
	return s.Action(ctx, id, action, path, body)
}
