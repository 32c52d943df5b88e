// File: internal/sheets/a1.go
package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnName converts a zero-based column index into its A1 letters (0 -> A, 26 -> AA).
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}
	name := ""
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		name = string(rune('A'+(n-1)%26)) + name
	}
	return name
}

// ColumnIndex converts A1 column letters into a zero-based index.
func ColumnIndex(name string) (int, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	idx := 0
	for _, r := range name {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column name %q", name)
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1, nil
}

// quoteSheet wraps sheet names that need quoting in A1 notation.
func quoteSheet(sheet string) string {
	for _, r := range sheet {
		if !(r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
		}
	}
	return sheet
}

// Span addresses the cells fromCol..toCol of a single row (row is 1-based).
func Span(sheet string, fromCol, toCol, row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), ColumnName(fromCol), row, ColumnName(toCol), row)
}

// Cell addresses a single cell (row is 1-based).
func Cell(sheet string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), ColumnName(col), row)
}

// Columns addresses columns fromCol..toCol from firstRow to the end of the sheet.
func Columns(sheet string, fromCol, toCol, firstRow int) string {
	return fmt.Sprintf("%s!%s%d:%s", quoteSheet(sheet), ColumnName(fromCol), firstRow, ColumnName(toCol))
}

// CellString renders an untyped cell value as trimmed text.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Value returns the text of column col in row, or "" if the row is shorter.
func Value(row []any, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return CellString(row[col])
}

// Range is a parsed A1 range. Columns are zero-based, rows are 1-based.
// EndRow is 0 for ranges open to the bottom of the sheet.
type Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses ranges such as "Data_bom!A1:N", "'My sheet'!B:B" or "Xuat_BB_GN!B2".
func ParseRange(rng string) (Range, error) {
	var r Range

	ref := rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		sheet := rng[:i]
		if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
			sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
		}
		r.Sheet = sheet
		ref = rng[i+1:]
	}
	if ref == "" {
		return r, fmt.Errorf("invalid range %q", rng)
	}

	from, to, isSpan := strings.Cut(ref, ":")
	sc, sr, err := parseRef(from)
	if err != nil {
		return r, fmt.Errorf("invalid range %q: %w", rng, err)
	}
	ec, er := sc, sr
	if isSpan {
		ec, er, err = parseRef(to)
		if err != nil {
			return r, fmt.Errorf("invalid range %q: %w", rng, err)
		}
	}

	if sc < 0 {
		sc = 0
	}
	if sr == 0 {
		sr = 1
	}
	if ec < 0 {
		ec = 25
	}
	r.StartCol, r.StartRow, r.EndCol, r.EndRow = sc, sr, ec, er
	if r.EndCol < r.StartCol || (r.EndRow != 0 && r.EndRow < r.StartRow) {
		return r, fmt.Errorf("invalid range %q: end before start", rng)
	}
	return r, nil
}

// parseRef splits "AB12" into column 27 and row 12. Missing parts yield -1 and 0.
func parseRef(ref string) (int, int, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}

	col := -1
	if i > 0 {
		c, err := ColumnIndex(ref[:i])
		if err != nil {
			return 0, 0, err
		}
		col = c
	}

	row := 0
	if i < len(ref) {
		n, err := strconv.Atoi(ref[i:])
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
		}
		row = n
	}
	if col < 0 && row == 0 {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	return col, row, nil
}
