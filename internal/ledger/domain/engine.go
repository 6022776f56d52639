package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the currency comparison tolerance used across the ledger.
var Tolerance = decimal.New(1, -2) // 0.01

// RecomputeResult is the outcome of normalizing an invoice against its lines
// and confirmed payments.
type RecomputeResult struct {
	Total  decimal.Decimal
	Paid   decimal.Decimal
	Status InvoiceStatus
}

// Balance returns what remains owed.
func (r RecomputeResult) Balance() decimal.Decimal {
	return r.Total.Sub(r.Paid)
}

// Recompute derives an invoice's total and lifecycle state from immutable
// snapshots of its lines and payments. It is pure and idempotent; callers
// invoke it after every line or payment mutation and persist the result.
//
// When lines are present the total is Σsubtotal − Σdiscount + Σtax floored at
// zero, replacing the stored amount; without lines the stored amount stands
// (invoices created without line detail). Only confirmed payments with a
// positive amount count toward paid. A canceled invoice never changes here.
func Recompute(invoice Invoice, lines []InvoiceLine, payments []Payment, now time.Time) RecomputeResult {
	total := invoice.Total
	if len(lines) > 0 {
		total = decimal.Zero
		for _, line := range lines {
			total = total.Add(line.Subtotal).Sub(line.Discount).Add(line.Tax)
		}
		if total.IsNegative() {
			total = decimal.Zero
		}
	}

	paid := decimal.Zero
	for _, payment := range payments {
		if payment.Status != PaymentStatusConfirmed {
			continue
		}
		if payment.Amount.IsPositive() {
			paid = paid.Add(payment.Amount)
		}
	}

	result := RecomputeResult{Total: total, Paid: paid}

	switch {
	case invoice.Status == InvoiceStatusCanceled:
		result.Status = InvoiceStatusCanceled
	case paid.GreaterThanOrEqual(total.Sub(Tolerance)):
		result.Status = InvoiceStatusPaid
	case paid.IsPositive():
		result.Status = InvoiceStatusPartiallyPaid
	case !invoice.Issued():
		result.Status = InvoiceStatusDraft
	case invoice.DueDate != nil && now.Truncate(24*time.Hour).After(invoice.DueDate.Truncate(24*time.Hour)):
		result.Status = InvoiceStatusOverdue
	default:
		result.Status = InvoiceStatusPending
	}

	return result
}
