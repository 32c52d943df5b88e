// File: internal/sheets/rowstore.go
package sheets

import "context"

// ValueRange is a block of values addressed by an A1 range.
type ValueRange struct {
	Range  string
	Values [][]any
}

// RowStore is the subset of spreadsheet operations the pipelines depend on.
// An empty spreadsheetID means the store's default spreadsheet.
type RowStore interface {
	ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	BatchWrite(ctx context.Context, spreadsheetID string, data []ValueRange) error
	BatchClear(ctx context.Context, spreadsheetID string, ranges []string) error
	// Append adds rows after the last used row of the table in rng as one
	// atomic operation and returns the range that was written.
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (string, error)
}

// ValueInputOption is used for every write. Values are stored exactly as
// given; formatted numbers such as "1.200" or codes with leading zeros are not
// re-parsed under the spreadsheet locale.
const ValueInputOption = "RAW"
