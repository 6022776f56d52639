package domain

import "context"

type GenerateMonthlyRequest struct {
	Period  string `json:"period"`
	CycleID string `json:"cycle_id"`
	GroupID string `json:"group_id"`
	Emit    bool   `json:"emit"`
	DryRun  bool   `json:"dry_run"`
}

type GenerateMonthlyResponse struct {
	TotalStudents   int      `json:"total_students"`
	Created         int      `json:"created"`
	SkippedExisting int      `json:"skipped_existing"`
	Errors          []string `json:"errors"`
}

type ApplyLateFeesRequest struct {
	Period  string `json:"period"`
	CycleID string `json:"cycle_id"`
	DryRun  bool   `json:"dry_run"`
}

type ApplyLateFeesResponse struct {
	InvoicesEvaluated int      `json:"invoices_evaluated"`
	Applied           int      `json:"applied"`
	SkippedExisting   int      `json:"skipped_existing"`
	Errors            []string `json:"errors"`
}

// Service turns recurring enrollment obligations into invoices and applies
// late-fee surcharges to overdue ones.
type Service interface {
	GenerateMonthly(ctx context.Context, req GenerateMonthlyRequest) (GenerateMonthlyResponse, error)
	ApplyLateFees(ctx context.Context, req ApplyLateFeesRequest) (ApplyLateFeesResponse, error)
}
