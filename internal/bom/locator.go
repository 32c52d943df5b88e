package bom

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

// OrderLineItem is one order-detail row of an order.
type OrderLineItem struct {
	OrderCode    string `json:"order_code"`
	LineCode     string `json:"line_code"`
	Index        int    `json:"index"` // 1-based position within the order
	Row          int    `json:"row"`   // 1-based sheet row
	Measurements []any  `json:"measurements"`
}

// RecipeRowRef points at a recipe row whose match column equals a line code.
type RecipeRowRef struct {
	Row   int
	Owner string
	Match string
}

// OrderHeader is the order-level information shown on BOM documents.
type OrderHeader struct {
	Code          string   `json:"code"`
	Customer      string   `json:"customer"`
	Addresses     string   `json:"addresses,omitempty"`
	Contacts      string   `json:"contacts,omitempty"`
	Phones        string   `json:"phones,omitempty"`
	DeliveryDates []string `json:"delivery_dates,omitempty"`
}

// Locator reads order and recipe rows. It never writes.
type Locator struct {
	store         sheets.RowStore
	orderSheetID  string
	recipeSheetID string
	schema        Schema
	logger        logrus.FieldLogger
}

// NewLocator creates a Locator reading orders from orderSheetID and recipes from recipeSheetID.
func NewLocator(store sheets.RowStore, orderSheetID, recipeSheetID string, schema Schema, logger logrus.FieldLogger) *Locator {
	return &Locator{
		store:         store,
		orderSheetID:  orderSheetID,
		recipeSheetID: recipeSheetID,
		schema:        schema,
		logger:        logger,
	}
}

func sameCode(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// LocateLineItems returns the order-detail rows of orderCode in sheet order.
// An empty code means there is nothing to do yet and yields no items.
func (l *Locator) LocateLineItems(ctx context.Context, orderCode string) ([]OrderLineItem, error) {
	orderCode = strings.TrimSpace(orderCode)
	if orderCode == "" {
		l.logger.Info("no order code, nothing to locate")
		return []OrderLineItem{}, nil
	}

	d := l.schema.Detail
	rows, err := l.store.ReadRange(ctx, l.orderSheetID, sheets.Columns(d.Sheet, 0, int(d.LastColumn), 1))
	if err != nil {
		return nil, fmt.Errorf("read order details: %w", err)
	}

	items := []OrderLineItem{}
	for i := l.schema.HeaderRows; i < len(rows); i++ {
		row := rows[i]
		if !sameCode(d.OrderCode.Of(row), orderCode) {
			continue
		}

		measurements := make([]any, len(d.Measurements))
		for j, c := range d.Measurements {
			if int(c) < len(row) && row[c] != nil {
				measurements[j] = row[c]
			} else {
				measurements[j] = ""
			}
		}

		items = append(items, OrderLineItem{
			OrderCode:    orderCode,
			LineCode:     d.LineCode.Of(row),
			Index:        len(items) + 1,
			Row:          i + 1,
			Measurements: measurements,
		})
	}

	if len(items) == 0 {
		l.logger.WithField("order_code", orderCode).Info("no line items for order")
	}
	return items, nil
}

// RecipeSnapshot is one read of the recipe sheet.
type RecipeSnapshot struct {
	schema RecipeSchema
	rows   [][]any
	first  int
}

// LoadRecipes reads the recipe sheet once so that several line codes can be matched against it.
func (l *Locator) LoadRecipes(ctx context.Context) (*RecipeSnapshot, error) {
	r := l.schema.Recipe
	rows, err := l.store.ReadRange(ctx, l.recipeSheetID, sheets.Columns(r.Sheet, 0, int(r.LastColumn), 1))
	if err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}
	return &RecipeSnapshot{schema: r, rows: rows, first: l.schema.HeaderRows}, nil
}

// Match returns the rows whose match column equals lineCode, main row first.
func (s *RecipeSnapshot) Match(lineCode string) []RecipeRowRef {
	refs := []RecipeRowRef{}
	if strings.TrimSpace(lineCode) == "" {
		return refs
	}
	for i := s.first; i < len(s.rows); i++ {
		row := s.rows[i]
		if sameCode(s.schema.Match.Of(row), lineCode) {
			refs = append(refs, RecipeRowRef{
				Row:   i + 1,
				Owner: s.schema.Owner.Of(row),
				Match: s.schema.Match.Of(row),
			})
		}
	}
	return refs
}

// LocateRecipeRows reads the recipe sheet and matches lineCode against it.
func (l *Locator) LocateRecipeRows(ctx context.Context, lineCode string) ([]RecipeRowRef, error) {
	snap, err := l.LoadRecipes(ctx)
	if err != nil {
		return nil, err
	}
	refs := snap.Match(lineCode)
	if len(refs) == 0 {
		l.logger.WithField("line_code", lineCode).Info("no recipe for line code")
	}
	return refs, nil
}

// ResolveOrderCode returns the last non-empty value of the selector column and
// its 1-based row. An empty selector yields "" and no error.
func (l *Locator) ResolveOrderCode(ctx context.Context) (string, int, error) {
	s := l.schema.Selector
	rows, err := l.store.ReadRange(ctx, l.orderSheetID, sheets.Columns(s.Sheet, 0, int(s.Column), 1))
	if err != nil {
		return "", 0, fmt.Errorf("read selector: %w", err)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if v := s.Column.Of(rows[i]); v != "" {
			return v, i + 1, nil
		}
	}
	return "", 0, nil
}

// LocateOrderHeader collects the order header rows whose code columns match orderCode.
// It returns nil when the order has no header rows.
func (l *Locator) LocateOrderHeader(ctx context.Context, orderCode string) (*OrderHeader, error) {
	orderCode = strings.TrimSpace(orderCode)
	if orderCode == "" {
		return nil, nil
	}

	o := l.schema.Order
	rows, err := l.store.ReadRange(ctx, l.orderSheetID, sheets.Columns(o.Sheet, 0, int(o.LastColumn), 1))
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	var matched [][]any
	for i := l.schema.HeaderRows; i < len(rows); i++ {
		for _, c := range o.Codes {
			if sameCode(c.Of(rows[i]), orderCode) {
				matched = append(matched, rows[i])
				break
			}
		}
	}
	if len(matched) == 0 {
		l.logger.WithField("order_code", orderCode).Info("no order header")
		return nil, nil
	}

	join := func(c Column) string {
		var vals []string
		for _, row := range matched {
			if v := c.Of(row); v != "" {
				vals = append(vals, v)
			}
		}
		return strings.Join(vals, ", ")
	}

	header := &OrderHeader{
		Code:      orderCode,
		Customer:  o.Customer.Of(matched[0]),
		Addresses: join(o.Address),
		Contacts:  join(o.Contact),
		Phones:    join(o.Phone),
	}
	for _, row := range matched {
		if v := o.DeliveryDate.Of(row); v != "" {
			header.DeliveryDates = append(header.DeliveryDates, formatSheetDate(v))
		}
	}
	return header, nil
}

// formatSheetDate normalises the date layouts seen in order sheets to dd/mm/yyyy.
// Unrecognised values are returned unchanged.
func formatSheetDate(v string) string {
	for _, layout := range []string{"02/01/2006", "2/1/2006", "2006-01-02", "1/2/2006 15:04:05", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, v); err == nil {
			return sheets.FormatDateVN(t)
		}
	}
	return v
}
