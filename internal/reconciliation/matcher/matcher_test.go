package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
)

func TestExtract(t *testing.T) {
	e := NewRegexExtractor()

	cases := []struct {
		description string
		kind        TokenKind
		value       string
	}{
		{"TRANSFERENCIA SPEI MATRICULA: A1109", TokenKindCode, "A1109"},
		{"MATRICULA LEG-001 COLEGIATURA MARZO", TokenKindCode, "LEG-001"},
		{"PAGO ALUMNO A1109", TokenKindCode, "A1109"},
		{"pago alumno a1109", TokenKindCode, "A1109"},
		{"PAGO ALUMNO 1109 MARZO", TokenKindNumeric, "1109"},
		{"DEPOSITO 004523 COLEGIATURA", TokenKindNumeric, "004523"},
		{"TRANSFERENCIA BANCARIA", TokenKindNone, ""},
		{"PAGO 12", TokenKindNone, ""},
	}

	for _, tc := range cases {
		token := e.Extract(tc.description)
		assert.Equal(t, tc.kind, token.Kind, "description %q", tc.description)
		assert.Equal(t, tc.value, token.Value, "description %q", tc.description)
	}
}

func TestNumericCode(t *testing.T) {
	assert.Equal(t, "1109", NumericCode("A1109"))
	assert.Equal(t, "001", NumericCode("LEG-001"))
	assert.Equal(t, "", NumericCode("SIN-DIGITOS"))
}

func TestScore(t *testing.T) {
	student := directorydomain.Student{FirstName: "Ana", LastName: "Lopez"}
	invoice := ledgerdomain.Invoice{Number: 42, Total: decimal.NewFromInt(1000)}

	t.Run("amount within one percent", func(t *testing.T) {
		confidence, reason := Score("DEPOSITO EN EFECTIVO", decimal.NewFromInt(1005), invoice, student)
		assert.InDelta(t, 0.5, confidence, 1e-9)
		assert.Contains(t, reason, "amount within 1%")
	})

	t.Run("amount within five percent", func(t *testing.T) {
		confidence, _ := Score("DEPOSITO EN EFECTIVO", decimal.NewFromInt(1040), invoice, student)
		assert.InDelta(t, 0.3, confidence, 1e-9)
	})

	t.Run("amount within ten percent", func(t *testing.T) {
		confidence, _ := Score("DEPOSITO EN EFECTIVO", decimal.NewFromInt(1080), invoice, student)
		assert.InDelta(t, 0.1, confidence, 1e-9)
	})

	t.Run("amount far off scores nothing", func(t *testing.T) {
		confidence, reason := Score("DEPOSITO EN EFECTIVO", decimal.NewFromInt(5000), invoice, student)
		assert.Zero(t, confidence)
		assert.Empty(t, reason)
	})

	t.Run("name and invoice number stack", func(t *testing.T) {
		confidence, reason := Score("PAGO 42 ANA LOPEZ", decimal.NewFromInt(1000), invoice, student)
		// 0.5 amount + 0.3 invoice number + 0.1 + 0.1 names
		assert.InDelta(t, 1.0, confidence, 1e-9)
		assert.Contains(t, reason, "invoice number in description")
		assert.Contains(t, reason, "first name in description")
		assert.Contains(t, reason, "last name in description")
	})

	t.Run("zero total invoice gets no amount points", func(t *testing.T) {
		zeroInvoice := ledgerdomain.Invoice{Number: 7, Total: decimal.Zero}
		confidence, _ := Score("DEPOSITO", decimal.NewFromInt(100), zeroInvoice, student)
		assert.Zero(t, confidence)
	})
}
