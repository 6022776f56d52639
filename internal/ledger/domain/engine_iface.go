package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Engine re-derives one invoice's total and state inside a caller-owned
// transaction. Every component that mutates invoice money calls this after
// the mutation.
type Engine interface {
	RecomputeInvoice(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (Invoice, error)
}
