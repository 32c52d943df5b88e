// File: internal/sheets/memstore.go
package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is returned by MemoryStore when a failure was scheduled.
var ErrInjected = errors.New("injected row store failure")

// MemoryStore is an in-process RowStore used by tests and local dry runs.
// Hooks run outside the store lock and may call Set/Get.
type MemoryStore struct {
	mu    sync.Mutex
	books map[string]map[string][][]any

	// BeforeRead runs before every ReadRange.
	BeforeRead func(spreadsheetID, rng string)
	// AfterWrite runs after every successful BatchWrite.
	AfterWrite func(spreadsheetID string, data []ValueRange)
	// AfterClear runs after every successful BatchClear.
	AfterClear func(spreadsheetID string, ranges []string)

	// Scheduled failures, consumed one per call.
	FailReads  int
	FailWrites int
	FailClears int

	Reads   []string
	Writes  []ValueRange
	Clears  []string
	Appends []ValueRange
}

var _ RowStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{books: make(map[string]map[string][][]any)}
}

func (m *MemoryStore) grid(spreadsheetID, sheet string) [][]any {
	book := m.books[spreadsheetID]
	if book == nil {
		return nil
	}
	return book[sheet]
}

func (m *MemoryStore) set(spreadsheetID, sheet string, row, col int, v any) {
	book := m.books[spreadsheetID]
	if book == nil {
		book = make(map[string][][]any)
		m.books[spreadsheetID] = book
	}
	g := book[sheet]
	for len(g) < row {
		g = append(g, nil)
	}
	r := g[row-1]
	for len(r) <= col {
		r = append(r, "")
	}
	r[col] = v
	g[row-1] = r
	book[sheet] = g
}

// Set stores v at a 1-based row and zero-based column.
func (m *MemoryStore) Set(spreadsheetID, sheet string, row, col int, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(spreadsheetID, sheet, row, col, v)
}

// Get returns the text at a 1-based row and zero-based column.
func (m *MemoryStore) Get(spreadsheetID, sheet string, row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.grid(spreadsheetID, sheet)
	if row < 1 || row > len(g) {
		return ""
	}
	return Value(g[row-1], col)
}

// Load replaces a whole sheet, row 1 first.
func (m *MemoryStore) Load(spreadsheetID, sheet string, rows [][]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range rows {
		for j, v := range row {
			m.set(spreadsheetID, sheet, i+1, j, v)
		}
	}
}

func (m *MemoryStore) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.BeforeRead != nil {
		m.BeforeRead(spreadsheetID, rng)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads = append(m.Reads, rng)
	if m.FailReads > 0 {
		m.FailReads--
		return nil, ErrInjected
	}

	r, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}
	g := m.grid(spreadsheetID, r.Sheet)
	last := len(g)
	if r.EndRow != 0 && r.EndRow < last {
		last = r.EndRow
	}

	var out [][]any
	for row := r.StartRow; row <= last; row++ {
		src := g[row-1]
		var vals []any
		for col := r.StartCol; col <= r.EndCol && col < len(src); col++ {
			vals = append(vals, src[col])
		}
		for len(vals) > 0 && CellString(vals[len(vals)-1]) == "" {
			vals = vals[:len(vals)-1]
		}
		out = append(out, vals)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *MemoryStore) BatchWrite(ctx context.Context, spreadsheetID string, data []ValueRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.FailWrites > 0 {
		m.FailWrites--
		m.mu.Unlock()
		return ErrInjected
	}
	for _, vr := range data {
		r, err := ParseRange(vr.Range)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		for i, row := range vr.Values {
			for j, v := range row {
				m.set(spreadsheetID, r.Sheet, r.StartRow+i, r.StartCol+j, v)
			}
		}
		m.Writes = append(m.Writes, vr)
	}
	m.mu.Unlock()

	if m.AfterWrite != nil {
		m.AfterWrite(spreadsheetID, data)
	}
	return nil
}

// Append finds the last row with a value in rng's columns and writes rows
// below it while holding the store lock. Failures are scheduled with FailWrites.
func (m *MemoryStore) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	r, err := ParseRange(rng)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.FailWrites > 0 {
		m.FailWrites--
		m.mu.Unlock()
		return "", ErrInjected
	}

	g := m.grid(spreadsheetID, r.Sheet)
	last := r.StartRow - 1
	for row := len(g); row >= r.StartRow; row-- {
		used := false
		for col := r.StartCol; col <= r.EndCol && col < len(g[row-1]); col++ {
			if CellString(g[row-1][col]) != "" {
				used = true
				break
			}
		}
		if used {
			last = row
			break
		}
	}

	width := 0
	for i, row := range rows {
		for j, v := range row {
			m.set(spreadsheetID, r.Sheet, last+1+i, r.StartCol+j, v)
		}
		width = max(width, len(row))
	}
	written := fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(r.Sheet),
		ColumnName(r.StartCol), last+1, ColumnName(r.StartCol+max(width, 1)-1), last+len(rows))
	vr := ValueRange{Range: written, Values: rows}
	m.Appends = append(m.Appends, vr)
	m.mu.Unlock()

	if m.AfterWrite != nil {
		m.AfterWrite(spreadsheetID, []ValueRange{vr})
	}
	return written, nil
}

func (m *MemoryStore) BatchClear(ctx context.Context, spreadsheetID string, ranges []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.FailClears > 0 {
		m.FailClears--
		m.mu.Unlock()
		return ErrInjected
	}
	for _, rng := range ranges {
		r, err := ParseRange(rng)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		g := m.grid(spreadsheetID, r.Sheet)
		last := len(g)
		if r.EndRow != 0 && r.EndRow < last {
			last = r.EndRow
		}
		for row := r.StartRow; row <= last; row++ {
			for col := r.StartCol; col <= r.EndCol && col < len(g[row-1]); col++ {
				g[row-1][col] = ""
			}
		}
		m.Clears = append(m.Clears, rng)
	}
	m.mu.Unlock()

	if m.AfterClear != nil {
		m.AfterClear(spreadsheetID, ranges)
	}
	return nil
}
