// Package domain contains the read-only student/group directory models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// SchoolCycle is an academic year, e.g. "2025-2026".
type SchoolCycle struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null;uniqueIndex"`
	StartDate time.Time    `gorm:"not null"`
	EndDate   time.Time    `gorm:"not null"`
	Active    bool         `gorm:"not null;default:false"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SchoolCycle) TableName() string { return "school_cycles" }

// Group is a cohort of students within a cycle, e.g. "1A" morning shift.
type Group struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CycleID   snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	Grade     string       `gorm:"type:text;not null"`
	Shift     string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Group) TableName() string { return "groups" }

// Student is an enrolled student. Code is the school-assigned identifier
// (matrícula) that appears in bank transfer descriptions.
type Student struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	Code      string        `gorm:"type:text;not null;uniqueIndex"`
	FirstName string        `gorm:"type:text;not null"`
	LastName  string        `gorm:"type:text;not null"`
	GroupID   *snowflake.ID `gorm:"index"`
	Active    bool          `gorm:"not null;default:true"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Student) TableName() string { return "students" }

// ChargeConcept names what an invoice line is for (tuition, late fee, ...).
type ChargeConcept struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Code      string       `gorm:"type:text;not null;uniqueIndex"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChargeConcept) TableName() string { return "charge_concepts" }

const (
	ConceptCodeTuition = "TUITION"
	ConceptCodeLateFee = "LATE_FEE"
)

var (
	ErrCycleNotFound   = errors.New("cycle_not_found")
	ErrGroupNotFound   = errors.New("group_not_found")
	ErrStudentNotFound = errors.New("student_not_found")
	ErrConceptNotFound = errors.New("concept_not_found")
)
