// Package domain contains persistence models for the billing ledger.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCanceled      InvoiceStatus = "CANCELED"
)

// PaymentStatus distinguishes confirmed money from reversed money. Every
// write path today creates confirmed payments; VOID exists so reversals are
// representable without deleting history.
type PaymentStatus string

const (
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusVoid      PaymentStatus = "VOID"
)

// Invoice represents a billable obligation for a student.
type Invoice struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	Number        int64           `gorm:"not null;index"`
	StudentID     snowflake.ID    `gorm:"not null;index"`
	CycleID       snowflake.ID    `gorm:"not null;index"`
	Status        InvoiceStatus   `gorm:"type:text;not null;default:'DRAFT'"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	BillingPeriod *string         `gorm:"type:text;index"`
	ChargeRuleID  *snowflake.ID   `gorm:"index"`
	IssuedAt      *time.Time      `gorm:""`
	DueDate       *time.Time      `gorm:""`
	CanceledAt    *time.Time      `gorm:""`
	CancelReason  *string         `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Issued reports whether the invoice has ever been emitted to the student.
func (i Invoice) Issued() bool {
	return i.IssuedAt != nil || i.Status != InvoiceStatusDraft
}

// InvoiceLine is one detail line on an invoice.
type InvoiceLine struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	ConceptID   *snowflake.ID   `gorm:"index"`
	Description string          `gorm:"type:text"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }

// Payment is money received, optionally linked to an invoice. A payment may
// arrive unlinked when the bank reports it before conciliation.
type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   *snowflake.ID   `gorm:"index"`
	StudentID   *snowflake.ID   `gorm:"index"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentDate time.Time       `gorm:"not null"`
	Status      PaymentStatus   `gorm:"type:text;not null;default:'CONFIRMED'"`
	Reference   *string         `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// InvoiceCounter is the per-cycle sequence row invoice numbers are reserved
// from.
type InvoiceCounter struct {
	CycleID    snowflake.ID `gorm:"primaryKey"`
	LastNumber int64        `gorm:"not null;default:0"`
}

// TableName sets the database table name.
func (InvoiceCounter) TableName() string { return "invoice_counters" }

var (
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrStudentNotFound  = errors.New("student_not_found")
	ErrInvoiceCanceled  = errors.New("invoice_canceled")
	ErrCancelPaid       = errors.New("cannot_cancel_paid_invoice")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidStudentID = errors.New("invalid_student_id")
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
)
