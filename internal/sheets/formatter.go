// File: internal/sheets/formatter.go
package sheets

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssueLine is one aggregated code to be written to the stock-issue log.
type IssueLine struct {
	Code     string
	Quantity decimal.Decimal
	Unit     string
}

// StockIssueColumns is the number of columns of a stock-issue log row (A..G).
const StockIssueColumns = 7

// FormatDateVN formats a date the way the sheets expect it (dd/mm/yyyy).
func FormatDateVN(t time.Time) string {
	return t.Format("02/01/2006")
}

// NewIssueID returns an 8 character uppercase identifier for a stock-issue row.
func NewIssueID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:8])
}

// FormatStockIssue formats aggregated lines as stock-issue log rows:
// id, order code, date, code, empty, quantity, unit.
func FormatStockIssue(orderCode string, date time.Time, lines []IssueLine, newID func() string) [][]any {
	if newID == nil {
		newID = NewIssueID
	}

	day := FormatDateVN(date)
	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, []any{
			newID(),
			orderCode,
			day,
			line.Code,
			"",
			line.Quantity.InexactFloat64(),
			line.Unit,
		})
	}
	return rows
}
