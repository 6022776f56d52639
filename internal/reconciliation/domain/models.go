// Package domain contains reconciliation models and contracts.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ReconciliationRecord links a bank transaction to a student and/or invoice.
// One active record per transaction; absence of a record means the
// transaction is unreconciled.
type ReconciliationRecord struct {
	ID                snowflake.ID  `gorm:"primaryKey"`
	BankTransactionID snowflake.ID  `gorm:"not null;uniqueIndex"`
	StudentID         *snowflake.ID `gorm:"index"`
	InvoiceID         *snowflake.ID `gorm:"index"`
	PaymentID         *snowflake.ID `gorm:"index"`
	Comment           *string       `gorm:"type:text"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReconciliationRecord) TableName() string { return "reconciliation_records" }

// Candidate is one ranked match suggestion. Confidence is heuristic; the
// matcher never commits anything on its own.
type Candidate struct {
	InvoiceID     snowflake.ID    `json:"invoice_id"`
	InvoiceNumber int64           `json:"invoice_number"`
	StudentID     snowflake.ID    `json:"student_id"`
	StudentName   string          `json:"student_name"`
	Amount        decimal.Decimal `json:"amount"`
	Confidence    float64         `json:"confidence"`
	Reason        string          `json:"reason"`
}

type ReconcileRequest struct {
	TransactionID string  `json:"transaction_id"`
	StudentID     *string `json:"student_id"`
	InvoiceID     *string `json:"invoice_id"`
	Comment       *string `json:"comment"`
}

var (
	ErrTransactionIgnored = errors.New("transaction_ignored")
	ErrNotUnreconciled    = errors.New("transaction_not_unreconciled")
	ErrInvalidTransaction = errors.New("invalid_transaction_id")
)
