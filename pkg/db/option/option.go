package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption refines a repository query.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type conditionOption struct {
	cond Condition
}

func (o conditionOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s %s ?", o.cond.Field, o.cond.Operator), o.cond.Value)
}

func ApplyOperator(cond Condition) QueryOption {
	return conditionOption{cond: cond}
}

type sortOption struct {
	order string
}

func (o sortOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.order)
}

// WithOrder sorts results by a raw order clause.
func WithOrder(order string) QueryOption {
	return sortOption{order: order}
}

type limitOption struct {
	limit int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(o.limit)
}

func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}
