package bom

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

// ParseVNDecimal parses a number written with Vietnamese separators: '.'
// groups thousands and ',' marks decimals. Empty or malformed input yields zero.
func ParseVNDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Replace(s, ",", ".", 1)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseVNNumber is ParseVNDecimal as a float64.
func ParseVNNumber(s string) float64 {
	return ParseVNDecimal(s).InexactFloat64()
}

// ParseQuantity parses a cell value. Numbers delivered unformatted by the
// API are taken as they are; text goes through ParseVNDecimal.
func ParseQuantity(v any) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case decimal.Decimal:
		return val
	default:
		return ParseVNDecimal(sheets.CellString(v))
	}
}

// FormatVN renders a decimal with Vietnamese separators.
func FormatVN(d decimal.Decimal) string {
	s := d.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
