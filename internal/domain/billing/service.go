package billing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/endpoints"
	"github.com/whitecross/gateway/internal/validation"
)

var Definition = resource.Definition{
	Name:       "billing",
	Entity:     "invoice",
	ListKey:    "invoices",
	Collection: endpoints.Invoices,
	Item:       endpoints.InvoiceByID,
	Profile:    cache.ProfileDefault,
}

type Service struct {
	*resource.Service[Invoice]
}

func NewService(deps resource.Deps) *Service {
	return &Service{Service: resource.New[Invoice](deps, Definition)}
}

func (s *Service) Create(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, id string, in InvoiceInput) (*Invoice, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	return s.Service.Update(ctx, id, in)
}

// RecordPayment applies a payment to invoice id. The invoice is re-read from
// the backend first; the payment may not exceed its outstanding balance.
func (s *Service) RecordPayment(ctx context.Context, id string, in PaymentInput) (*Payment, error) {
	in.Normalize()
	if err := validation.Validate(&in); err != nil {
		return nil, err
	}
	inv, err := s.Reload(ctx, id)
	if err != nil {
		return nil, err
	}

	if !inv.Payable() {
		err := fmt.Errorf("%w: status %s, balance %d", ErrNotPayable, inv.Status, inv.Balance())
		s.Record(ctx, "payment", id, inv.StudentID, err)
		return nil, err
	}
	if in.AmountCents > inv.Balance() {
		err := fmt.Errorf("%w: %d > %d", ErrOverpayment, in.AmountCents, inv.Balance())
		s.Record(ctx, "payment", id, inv.StudentID, err)
		return nil, err
	}

	out, err := resource.Send[Payment](ctx, s.Client(), http.MethodPost, endpoints.InvoicePayments(id), "payment", in)
	if err != nil {
		s.Record(ctx, "payment", id, inv.StudentID, err)
		return nil, fmt.Errorf("record payment for invoice %s: %w", id, err)
	}
	s.Invalidate(id)
	s.Record(ctx, "payment", id, inv.StudentID, nil)
	return out, nil
}
