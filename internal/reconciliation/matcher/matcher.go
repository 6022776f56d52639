// Package matcher extracts student-identifying tokens from bank transfer
// descriptions and scores invoices against deposits. Everything here is
// heuristic; results feed human confirmation, never automatic commits.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

type TokenKind string

const (
	TokenKindCode    TokenKind = "CODE"
	TokenKindNumeric TokenKind = "NUMERIC"
	TokenKindNone    TokenKind = "NONE"
)

// Token is the student identifier candidate pulled from a description.
type Token struct {
	Kind  TokenKind
	Value string
}

// Extractor pulls a student-identifying token out of free text. Behind an
// interface so alternative strategies (learned scoring, bank-specific
// parsers) can replace the regex set without touching the committer.
type Extractor interface {
	Extract(description string) Token
}

// RegexExtractor tries an ordered set of patterns, most explicit first.
type RegexExtractor struct{}

func NewRegexExtractor() *RegexExtractor { return &RegexExtractor{} }

var codePatterns = []*regexp.Regexp{
	// explicit "MATRICULA: A1109" prefix
	regexp.MustCompile(`MATRICULA:?\s*([A-Z0-9-]+)`),
	// hyphenated codes like LEG-001
	regexp.MustCompile(`\b([A-Z]{2,4}-\d{2,4})\b`),
	// compact alphanumeric codes like A1109
	regexp.MustCompile(`\b([A-Z]{1,2}\d{3,5})\b`),
}

// numeric fallback: a 3-6 digit token, optionally preceded by "ALUMNO"
var numericPattern = regexp.MustCompile(`(?:ALUMNO\s+)?\b(\d{3,6})\b`)

func (e *RegexExtractor) Extract(description string) Token {
	text := strings.ToUpper(description)

	for _, pattern := range codePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return Token{Kind: TokenKindCode, Value: m[1]}
		}
	}
	if m := numericPattern.FindStringSubmatch(text); m != nil {
		return Token{Kind: TokenKindNumeric, Value: m[1]}
	}
	return Token{Kind: TokenKindNone}
}

// NumericCode reduces a student code to its digits, for comparing numeric
// tokens against codes like "A1109".
func NumericCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// one percent, five percent, ten percent closeness tiers
var (
	closenessTiers = []struct {
		ratio  decimal.Decimal
		points float64
		label  string
	}{
		{decimal.New(1, -2), 0.5, "amount within 1%"},
		{decimal.New(5, -2), 0.3, "amount within 5%"},
		{decimal.New(1, -1), 0.1, "amount within 10%"},
	}
)

// Score accumulates confidence for an invoice against a deposit amount from
// amount closeness and text containment signals. Capped at 1.0.
func Score(description string, amount decimal.Decimal, invoice ledgerdomain.Invoice, student directorydomain.Student) (float64, string) {
	text := strings.ToUpper(description)
	confidence := 0.0
	var reasons []string

	if invoice.Total.IsPositive() {
		diff := amount.Sub(invoice.Total).Abs().Div(invoice.Total)
		for _, tier := range closenessTiers {
			if diff.LessThanOrEqual(tier.ratio) {
				confidence += tier.points
				reasons = append(reasons, tier.label)
				break
			}
		}
	}

	if invoice.Number > 0 && strings.Contains(text, fmt.Sprintf("%d", invoice.Number)) {
		confidence += 0.3
		reasons = append(reasons, "invoice number in description")
	}
	if name := strings.ToUpper(strings.TrimSpace(student.FirstName)); name != "" && strings.Contains(text, name) {
		confidence += 0.1
		reasons = append(reasons, "first name in description")
	}
	if name := strings.ToUpper(strings.TrimSpace(student.LastName)); name != "" && strings.Contains(text, name) {
		confidence += 0.1
		reasons = append(reasons, "last name in description")
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, strings.Join(reasons, ", ")
}
