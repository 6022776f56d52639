package domain

import "context"

// Service ranks candidate matches for unreconciled deposits and commits or
// reverts confirmed ones.
type Service interface {
	Suggest(ctx context.Context, transactionID string) ([]Candidate, error)
	Reconcile(ctx context.Context, req ReconcileRequest) error
	Revert(ctx context.Context, transactionID string) error
}
