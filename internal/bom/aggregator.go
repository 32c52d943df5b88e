package bom

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Kind classifies a recipe row.
type Kind string

const (
	KindUnknown  Kind = ""
	KindProduct  Kind = "product"
	KindMaterial Kind = "material"
)

// ComputedRow is a recipe row as read back after recalculation.
type ComputedRow struct {
	LineIndex int    `json:"line_index"`
	LineCode  string `json:"line_code"`
	Row       int    `json:"row"`
	Cells     []any  `json:"cells"`
}

// AggregateEntry is the running total of one product or material code.
type AggregateEntry struct {
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Description string          `json:"description,omitempty"`
	Sources     int             `json:"sources"`
}

// Summary holds aggregate entries in first-seen order.
type Summary struct {
	Products  []*AggregateEntry `json:"products"`
	Materials []*AggregateEntry `json:"materials"`
}

type entryKey struct {
	kind Kind
	code string
}

type rowKey struct {
	line int
	row  int
}

// Aggregator sums computed rows per (kind, code). A computed row identified
// by its line index and sheet row is counted once however often it is added.
type Aggregator struct {
	schema  RecipeSchema
	entries map[entryKey]*AggregateEntry
	order   []entryKey
	seen    map[rowKey]struct{}
}

// NewAggregator returns an empty Aggregator for rows laid out as schema.
func NewAggregator(schema RecipeSchema) *Aggregator {
	return &Aggregator{
		schema:  schema,
		entries: make(map[entryKey]*AggregateEntry),
		seen:    make(map[rowKey]struct{}),
	}
}

// Add folds rows into the running totals. Rows without a known kind, without
// a code, or carrying a header label as code are skipped.
func (a *Aggregator) Add(rows ...ComputedRow) {
	for _, r := range rows {
		rk := rowKey{line: r.LineIndex, row: r.Row}
		if _, dup := a.seen[rk]; dup {
			continue
		}
		a.seen[rk] = struct{}{}

		kind := a.schema.KindOf(r.Cells)
		var codeCol, qtyCol, unitCol Column
		switch kind {
		case KindProduct:
			codeCol, qtyCol, unitCol = a.schema.ProductCode, a.schema.ProductQuantity, a.schema.ProductUnit
		case KindMaterial:
			codeCol, qtyCol, unitCol = a.schema.MaterialCode, a.schema.MaterialQuantity, a.schema.MaterialUnit
		default:
			continue
		}

		code := codeCol.Of(r.Cells)
		if code == "" || slices.Contains(a.schema.HeaderLabels, code) {
			continue
		}

		var qtyCell any
		if int(qtyCol) < len(r.Cells) {
			qtyCell = r.Cells[qtyCol]
		}

		key := entryKey{kind: kind, code: code}
		entry, ok := a.entries[key]
		if !ok {
			entry = &AggregateEntry{Code: code, Kind: kind, Quantity: decimal.Zero}
			a.entries[key] = entry
			a.order = append(a.order, key)
		}
		entry.Quantity = entry.Quantity.Add(ParseQuantity(qtyCell))
		entry.Sources++
		if entry.Unit == "" {
			entry.Unit = unitCol.Of(r.Cells)
		}
		if entry.Description == "" {
			entry.Description = a.schema.Description.Of(r.Cells)
		}
	}
}

// Summary returns the entries added so far, products and materials each in first-seen order.
func (a *Aggregator) Summary() Summary {
	s := Summary{Products: []*AggregateEntry{}, Materials: []*AggregateEntry{}}
	for _, key := range a.order {
		entry := *a.entries[key]
		if key.kind == KindProduct {
			s.Products = append(s.Products, &entry)
		} else {
			s.Materials = append(s.Materials, &entry)
		}
	}
	return s
}

// Aggregate sums rows in one pass.
func Aggregate(schema RecipeSchema, rows []ComputedRow) Summary {
	a := NewAggregator(schema)
	a.Add(rows...)
	return a.Summary()
}
