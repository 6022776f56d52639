package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ListInvoicesRequest struct {
	Status        *InvoiceStatus
	StudentID     *string
	BillingPeriod *string
}

type ListInvoicesResponse struct {
	Invoices []Invoice `json:"invoices"`
}

type CreateInvoiceRequest struct {
	StudentID string          `json:"student_id"`
	CycleID   string          `json:"cycle_id"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   *time.Time      `json:"due_date"`
	Emit      bool            `json:"emit"`
}

type RegisterPaymentRequest struct {
	InvoiceID   string          `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   *string         `json:"reference"`
}

// Service owns invoice state. Every mutation recomputes the invoice from its
// lines and confirmed payments before persisting.
type Service interface {
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	RegisterPayment(ctx context.Context, req RegisterPaymentRequest) (Invoice, error)
	Cancel(ctx context.Context, id string, reason string) (Invoice, error)
}
