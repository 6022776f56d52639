// Package domain contains models for imported bank-statement rows.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionStatus is a bank transaction's reconciliation state.
type TransactionStatus string

const (
	StatusUnreconciled TransactionStatus = "UNRECONCILED"
	StatusReconciled   TransactionStatus = "RECONCILED"
	StatusIgnored      TransactionStatus = "IGNORED"
)

// TransactionDirection distinguishes deposits from withdrawals.
type TransactionDirection string

const (
	DirectionDeposit    TransactionDirection = "DEPOSIT"
	DirectionWithdrawal TransactionDirection = "WITHDRAWAL"
)

// BankTransaction is one imported statement line. Rows are created only by
// import and never change afterwards except for their status. DedupHash is
// the sole defense against re-importing the same statement.
type BankTransaction struct {
	ID          snowflake.ID         `gorm:"primaryKey"`
	Date        time.Time            `gorm:"not null;index"`
	Amount      decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Balance     decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Direction   TransactionDirection `gorm:"type:text;not null"`
	Description string               `gorm:"type:text;not null"`
	DedupHash   string               `gorm:"type:text;not null;uniqueIndex"`
	Status      TransactionStatus    `gorm:"type:text;not null;default:'UNRECONCILED'"`
	CreatedAt   time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BankTransaction) TableName() string { return "bank_transactions" }

// SignedAmount is negative for withdrawals.
func (t BankTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

type ImportResult struct {
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Deposits    int `json:"deposits"`
	Withdrawals int `json:"withdrawals"`
}

var (
	ErrMissingHeader       = errors.New("missing_statement_header")
	ErrTransactionNotFound = errors.New("bank_transaction_not_found")
)
