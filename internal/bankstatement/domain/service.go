package domain

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
)

type ListTransactionsRequest struct {
	Status *TransactionStatus
}

type ListTransactionsResponse struct {
	Transactions []BankTransaction `json:"transactions"`
}

// Service ingests bank-statement CSV exports and exposes the imported rows.
type Service interface {
	Import(ctx context.Context, statement io.Reader) (ImportResult, error)
	GetByID(ctx context.Context, id snowflake.ID) (BankTransaction, error)
	List(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}
