package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func issuedInvoice(total string, dueDate *time.Time) Invoice {
	issuedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return Invoice{
		Status:   InvoiceStatusPending,
		Total:    d(total),
		IssuedAt: &issuedAt,
		DueDate:  dueDate,
	}
}

func TestRecomputeTotalFromLines(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("sums subtotal minus discount plus tax", func(t *testing.T) {
		lines := []InvoiceLine{
			{Subtotal: d("5000.00"), Discount: d("1250.00"), Tax: d("0")},
			{Subtotal: d("100.00"), Discount: d("0"), Tax: d("16.00")},
		}
		result := Recompute(issuedInvoice("0", nil), lines, nil, now)
		assert.True(t, result.Total.Equal(d("3866.00")), "got %s", result.Total)
	})

	t.Run("negative total floors at zero", func(t *testing.T) {
		lines := []InvoiceLine{
			{Subtotal: d("100.00"), Discount: d("500.00")},
		}
		result := Recompute(issuedInvoice("0", nil), lines, nil, now)
		assert.True(t, result.Total.IsZero())
		assert.Equal(t, InvoiceStatusPaid, result.Status)
	})

	t.Run("without lines the stored amount stands", func(t *testing.T) {
		result := Recompute(issuedInvoice("750.00", nil), nil, nil, now)
		assert.True(t, result.Total.Equal(d("750.00")))
		assert.Equal(t, InvoiceStatusPending, result.Status)
	})
}

func TestRecomputePayments(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	lines := []InvoiceLine{{Subtotal: d("1000.00")}}

	t.Run("paid within tolerance", func(t *testing.T) {
		payments := []Payment{{Amount: d("999.99"), Status: PaymentStatusConfirmed}}
		result := Recompute(issuedInvoice("0", nil), lines, payments, now)
		assert.Equal(t, InvoiceStatusPaid, result.Status)
	})

	t.Run("partial payment", func(t *testing.T) {
		payments := []Payment{{Amount: d("400.00"), Status: PaymentStatusConfirmed}}
		result := Recompute(issuedInvoice("0", nil), lines, payments, now)
		assert.Equal(t, InvoiceStatusPartiallyPaid, result.Status)
		assert.True(t, result.Balance().Equal(d("600.00")))
	})

	t.Run("void payments do not count", func(t *testing.T) {
		payments := []Payment{
			{Amount: d("1000.00"), Status: PaymentStatusVoid},
			{Amount: d("200.00"), Status: PaymentStatusConfirmed},
		}
		result := Recompute(issuedInvoice("0", nil), lines, payments, now)
		assert.Equal(t, InvoiceStatusPartiallyPaid, result.Status)
		assert.True(t, result.Paid.Equal(d("200.00")))
	})

	t.Run("negative payments do not count", func(t *testing.T) {
		payments := []Payment{{Amount: d("-50.00"), Status: PaymentStatusConfirmed}}
		result := Recompute(issuedInvoice("0", nil), lines, payments, now)
		assert.True(t, result.Paid.IsZero())
	})

	t.Run("overpayment is still paid", func(t *testing.T) {
		payments := []Payment{{Amount: d("1500.00"), Status: PaymentStatusConfirmed}}
		result := Recompute(issuedInvoice("0", nil), lines, payments, now)
		assert.Equal(t, InvoiceStatusPaid, result.Status)
		assert.True(t, result.Balance().Equal(d("-500.00")))
	})
}

func TestRecomputeLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("unissued stays draft", func(t *testing.T) {
		invoice := Invoice{Status: InvoiceStatusDraft, Total: d("100.00")}
		result := Recompute(invoice, nil, nil, now)
		assert.Equal(t, InvoiceStatusDraft, result.Status)
	})

	t.Run("past due date flips to overdue", func(t *testing.T) {
		due := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
		result := Recompute(issuedInvoice("100.00", &due), nil, nil, now)
		assert.Equal(t, InvoiceStatusOverdue, result.Status)
	})

	t.Run("due today is not overdue", func(t *testing.T) {
		due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
		result := Recompute(issuedInvoice("100.00", &due), nil, nil, now)
		assert.Equal(t, InvoiceStatusPending, result.Status)
	})

	t.Run("canceled never changes", func(t *testing.T) {
		invoice := Invoice{Status: InvoiceStatusCanceled, Total: d("100.00")}
		payments := []Payment{{Amount: d("100.00"), Status: PaymentStatusConfirmed}}
		result := Recompute(invoice, nil, payments, now)
		assert.Equal(t, InvoiceStatusCanceled, result.Status)
	})

	t.Run("zero total evaluates as paid", func(t *testing.T) {
		result := Recompute(issuedInvoice("0", nil), nil, nil, now)
		assert.Equal(t, InvoiceStatusPaid, result.Status)
	})

	t.Run("overdue invoice becomes partially paid once money arrives", func(t *testing.T) {
		due := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
		payments := []Payment{{Amount: d("10.00"), Status: PaymentStatusConfirmed}}
		result := Recompute(issuedInvoice("100.00", &due), nil, payments, now)
		assert.Equal(t, InvoiceStatusPartiallyPaid, result.Status)
	})
}
