package billing

import (
	"fmt"
	"strings"

	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/sanitize"
)

var (
	// ErrOverpayment is returned when a payment exceeds the outstanding balance.
	ErrOverpayment = fmt.Errorf("%w: payment exceeds outstanding balance", resource.ErrConflict)
	// ErrNotPayable is returned for invoices that are not issued or overdue.
	ErrNotPayable = fmt.Errorf("%w: invoice does not accept payments", resource.ErrConflict)
)

type Status string

const (
	StatusDraft   Status = "DRAFT"
	StatusIssued  Status = "ISSUED"
	StatusPaid    Status = "PAID"
	StatusVoid    Status = "VOID"
	StatusOverdue Status = "OVERDUE"
)

var Statuses = []string{
	string(StatusDraft),
	string(StatusIssued),
	string(StatusPaid),
	string(StatusVoid),
	string(StatusOverdue),
}

type Method string

const (
	MethodCash      Method = "CASH"
	MethodCheck     Method = "CHECK"
	MethodCard      Method = "CARD"
	MethodACH       Method = "ACH"
	MethodInsurance Method = "INSURANCE"
)

type Invoice struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	AmountCents int64  `json:"amountCents"`
	PaidCents   int64  `json:"paidCents"`
	Currency    string `json:"currency"`
	DueDate     string `json:"dueDate"`
	Status      Status `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func (i Invoice) StudentRef() string { return i.StudentID }
func (i Invoice) Identifier() string { return i.ID }

// Balance is the amount still owed, never negative.
func (i Invoice) Balance() int64 {
	if i.PaidCents >= i.AmountCents {
		return 0
	}
	return i.AmountCents - i.PaidCents
}

// Payable reports whether the invoice accepts payments.
func (i Invoice) Payable() bool {
	return (i.Status == StatusIssued || i.Status == StatusOverdue) && i.Balance() > 0
}

type InvoiceInput struct {
	StudentID   string `json:"studentId" validate:"required,uuid"`
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,currency"`
	DueDate     string `json:"dueDate" validate:"required,isodate"`
	Status      Status `json:"status" validate:"required,oneof=DRAFT ISSUED PAID VOID OVERDUE"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

func (in InvoiceInput) StudentRef() string { return in.StudentID }

// Normalize defaults the status to DRAFT and the currency to USD.
func (in *InvoiceInput) Normalize() {
	in.StudentID = strings.ToLower(strings.TrimSpace(in.StudentID))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	in.DueDate = strings.TrimSpace(in.DueDate)
	in.Status = Status(strings.ToUpper(strings.TrimSpace(string(in.Status))))
	if in.Status == "" {
		in.Status = StatusDraft
	}
	in.Description = sanitize.Text(in.Description)
}

type Payment struct {
	ID          string `json:"id"`
	InvoiceID   string `json:"invoiceId"`
	AmountCents int64  `json:"amountCents"`
	Method      Method `json:"method"`
	PaidAt      string `json:"paidAt"`
	Reference   string `json:"reference,omitempty"`
}

type PaymentInput struct {
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	Method      Method `json:"method" validate:"required,oneof=CASH CHECK CARD ACH INSURANCE"`
	PaidAt      string `json:"paidAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00,notfuture"`
	Reference   string `json:"reference,omitempty" validate:"max=100"`
}

func (in *PaymentInput) Normalize() {
	in.Method = Method(strings.ToUpper(strings.TrimSpace(string(in.Method))))
	in.PaidAt = strings.TrimSpace(in.PaidAt)
	in.Reference = sanitize.Text(in.Reference)
}
