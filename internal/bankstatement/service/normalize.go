package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// statement date conventions seen in Mexican bank exports, most common first
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
}

func parseStatementDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// parseCurrency turns bank currency text into a decimal. It strips currency
// symbols, thousands separators and whitespace, and reads parenthesized
// values as negative.
func parseCurrency(raw string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == '$', unicode.IsSpace(r), unicode.IsLetter(r):
			// currency symbol, thousands separator, "MXN" suffix
		default:
		}
	}
	cleaned = b.String()
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		value = value.Neg()
	}
	return value, true
}

// normalizeDescription uppercases and strips everything outside [A-Z0-9] so
// cosmetic differences between exports of the same statement hash alike.
func normalizeDescription(raw string) string {
	upper := strings.ToUpper(raw)
	var b strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dedupHash fingerprints a statement row by day, signed amount and normalized
// description.
func dedupHash(date time.Time, signedAmount decimal.Decimal, description string) string {
	payload := date.Format("20060102") + signedAmount.StringFixed(2) + normalizeDescription(description)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
