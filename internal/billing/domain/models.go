// Package domain contains charge policy models for recurring billing.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ChargeRule describes who owes what. Scope narrows from exact group through
// grade/shift down to a fully generic cycle-wide fallback.
type ChargeRule struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	CycleID   snowflake.ID    `gorm:"not null;index"`
	ConceptID snowflake.ID    `gorm:"not null;index"`
	GroupID   *snowflake.ID   `gorm:"index"`
	Grade     *string         `gorm:"type:text"`
	Shift     *string         `gorm:"type:text"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DueDay    int             `gorm:"not null"`
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChargeRule) TableName() string { return "charge_rules" }

// LateFeeRule surcharges overdue invoices after a grace period. At most one
// active rule per cycle.
type LateFeeRule struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	CycleID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_late_fee_cycle_active,where:active"`
	GraceDays  int             `gorm:"not null"`
	Percentage decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	Active     bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LateFeeRule) TableName() string { return "late_fee_rules" }

// ScholarshipType is either a fraction of the base amount or a fixed discount.
type ScholarshipType string

const (
	ScholarshipTypePercentage ScholarshipType = "PERCENTAGE"
	ScholarshipTypeFixed      ScholarshipType = "FIXED"
)

// Scholarship is a per-student, per-cycle discount applied before invoice
// creation. At most one per (student, cycle).
type Scholarship struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	StudentID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_scholarship_student_cycle"`
	CycleID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_scholarship_student_cycle"`
	Type      ScholarshipType `gorm:"type:text;not null"`
	Value     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Scholarship) TableName() string { return "scholarships" }

// Apply discounts a base charge. The result is floored at zero and rounded
// half away from zero to two decimals.
func (s Scholarship) Apply(base decimal.Decimal) decimal.Decimal {
	amount := base
	switch s.Type {
	case ScholarshipTypePercentage:
		amount = base.Mul(decimal.NewFromInt(1).Sub(s.Value))
	case ScholarshipTypeFixed:
		amount = base.Sub(s.Value)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

var (
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidCycleID      = errors.New("invalid_cycle_id")
	ErrInvalidGroupID      = errors.New("invalid_group_id")
	ErrRuleNotFound        = errors.New("charge_rule_not_found")
	ErrLateFeeRuleNotFound = errors.New("late_fee_rule_not_found")
	ErrInvalidLateFeeRule  = errors.New("invalid_late_fee_rule")
	ErrDuplicateRule       = errors.New("duplicate_charge_rule")
)
