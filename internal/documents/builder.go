package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

var (
	// ErrNoOrderCode means neither the request nor the selector named an order.
	ErrNoOrderCode = errors.New("no order code selected")
	// ErrNotFound means the order has no rows for this document.
	ErrNotFound = errors.New("no data for order")
)

// BOMRunner expands an order into its bill of materials.
type BOMRunner interface {
	Run(ctx context.Context, orderCode string) (*bom.Result, error)
}

// View is the template model of one document.
type View struct {
	Document    string              `json:"document"`
	Title       string              `json:"title"`
	Code        string              `json:"code"`
	Header      map[string]string   `json:"header"`
	Lines       []map[string]string `json:"lines"`
	Flags       map[string]bool     `json:"flags"`
	BOM         *bom.Result         `json:"bom,omitempty"`
	Stale       bool                `json:"stale"`
	AutoPrint   bool                `json:"-"`
	GeneratedAt time.Time           `json:"generated_at"`

	// LogRow is the selector row the export path is written to, 0 when unknown.
	LogRow int `json:"-"`
}

// Builder assembles views from specs.
type Builder struct {
	store  sheets.RowStore
	bom    BOMRunner
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewBuilder creates a Builder. runner may be nil when no BOM documents are registered.
func NewBuilder(store sheets.RowStore, runner BOMRunner, logger logrus.FieldLogger) *Builder {
	return &Builder{store: store, bom: runner, logger: logger, now: time.Now}
}

// ResolveCode returns the order code to render and the selector row for the
// export log. An explicit code is looked up in the selector; without one the
// selector is read. The row is 0 when the code is not on the selector.
func (b *Builder) ResolveCode(ctx context.Context, spec *Spec, code string) (string, int, error) {
	code = strings.TrimSpace(code)
	sel := spec.Selector
	col, err := sheets.ColumnIndex(sel.Column)
	if err != nil {
		return "", 0, err
	}

	if sel.Row > 0 {
		rows, err := b.store.ReadRange(ctx, spec.SpreadsheetID, sheets.Cell(sel.Sheet, col, sel.Row))
		if err != nil {
			return "", 0, fmt.Errorf("read selector: %w", err)
		}
		selected := ""
		if len(rows) > 0 {
			selected = sheets.Value(rows[0], 0)
		}
		switch {
		case code == "" && selected == "":
			return "", 0, ErrNoOrderCode
		case code == "":
			return selected, sel.Row, nil
		case code == selected:
			return code, sel.Row, nil
		}
		// The selector row belongs to another order.
		return code, 0, nil
	}

	rows, err := b.store.ReadRange(ctx, spec.SpreadsheetID, sheets.Columns(sel.Sheet, col, col, 1))
	if err != nil {
		return "", 0, fmt.Errorf("read selector: %w", err)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		v := sheets.Value(rows[i], 0)
		if v == "" {
			continue
		}
		if code == "" || v == code {
			return v, i + 1, nil
		}
	}
	if code != "" {
		return code, 0, nil
	}
	return "", 0, ErrNoOrderCode
}

// Build resolves the order code and assembles the view of spec.
func (b *Builder) Build(ctx context.Context, spec *Spec, code string) (*View, error) {
	code, row, err := b.ResolveCode(ctx, spec, code)
	if err != nil {
		return nil, err
	}

	view := &View{
		Document:    spec.Name,
		Title:       spec.Title,
		Code:        code,
		Header:      map[string]string{},
		Lines:       []map[string]string{},
		Flags:       map[string]bool{},
		GeneratedAt: b.now(),
		LogRow:      row,
	}

	switch spec.Source {
	case SourceBOM:
		err = b.buildBOM(ctx, view)
	default:
		err = b.buildTables(ctx, spec, view)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (b *Builder) buildBOM(ctx context.Context, view *View) error {
	if b.bom == nil {
		return fmt.Errorf("document %s needs a BOM pipeline", view.Document)
	}
	res, err := b.bom.Run(ctx, view.Code)
	if err != nil {
		return err
	}
	if len(res.LineItems) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, view.Code)
	}

	view.BOM = res
	view.Stale = res.Stale
	if res.Order != nil {
		view.Header["customer"] = res.Order.Customer
		view.Header["address"] = res.Order.Addresses
		view.Header["contact"] = res.Order.Contacts
		view.Header["phone"] = res.Order.Phones
		view.Header["delivery_date"] = strings.Join(res.Order.DeliveryDates, ", ")
	}
	view.Header["order_code"] = view.Code

	for _, group := range [][]*bom.AggregateEntry{res.SummaryByProduct, res.SummaryByMaterial} {
		for _, e := range group {
			view.Lines = append(view.Lines, map[string]string{
				"stt":         strconv.Itoa(len(view.Lines) + 1),
				"kind":        string(e.Kind),
				"code":        e.Code,
				"description": e.Description,
				"quantity":    bom.FormatVN(e.Quantity),
				"unit":        e.Unit,
			})
		}
	}
	view.Flags["has_products"] = len(res.SummaryByProduct) > 0
	view.Flags["has_materials"] = len(res.SummaryByMaterial) > 0
	return nil
}

func (b *Builder) buildTables(ctx context.Context, spec *Spec, view *View) error {
	if spec.Header != nil {
		rows, err := b.matchRows(ctx, spec, spec.Header, view.Code)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			view.Header = rows[0]
		}
	}

	lines, err := b.matchRows(ctx, spec, spec.Lines, view.Code)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		b.logger.WithFields(logrus.Fields{"document": spec.Name, "order_code": view.Code}).Info("no document lines for order")
		return fmt.Errorf("%w: %s", ErrNotFound, view.Code)
	}

	for i, line := range lines {
		line["stt"] = strconv.Itoa(i + 1)
	}
	view.Lines = lines
	for _, f := range spec.Lines.Fields {
		has := false
		for _, line := range lines {
			if line[f.Name] != "" {
				has = true
				break
			}
		}
		view.Flags["has_"+f.Name] = has
	}
	if view.Header["order_code"] == "" {
		view.Header["order_code"] = view.Code
	}
	return nil
}

// matchRows returns the field maps of every row of t keyed by code.
func (b *Builder) matchRows(ctx context.Context, spec *Spec, t *Table, code string) ([]map[string]string, error) {
	last, err := sheets.ColumnIndex(t.LastColumn)
	if err != nil {
		return nil, err
	}
	rows, err := b.store.ReadRange(ctx, spec.SpreadsheetID, sheets.Columns(t.Sheet, 0, last, 1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.Sheet, err)
	}

	keys := make([]int, 0, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		idx, err := sheets.ColumnIndex(k)
		if err != nil {
			return nil, err
		}
		keys = append(keys, idx)
	}

	out := []map[string]string{}
	for i := t.HeaderRows; i < len(rows); i++ {
		matched := false
		for _, k := range keys {
			if sheets.Value(rows[i], k) == code {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		m := make(map[string]string, len(t.Fields))
		for _, f := range t.Fields {
			idx, err := sheets.ColumnIndex(f.Column)
			if err != nil {
				return nil, err
			}
			m[f.Name] = sheets.Value(rows[i], idx)
		}
		out = append(out, m)
	}
	return out, nil
}

// WriteLog stores value (normally the exported file path) on the view's selector row.
// It is a no-op when the spec has no log target or the row is unknown.
func (b *Builder) WriteLog(ctx context.Context, spec *Spec, view *View, value string) error {
	if spec.Log.Sheet == "" {
		return nil
	}
	log := b.logger.WithFields(logrus.Fields{"document": spec.Name, "order_code": view.Code})
	if view.LogRow == 0 {
		log.Warn("order code not found on the selector sheet, export path not logged")
		return nil
	}

	col, err := sheets.ColumnIndex(spec.Log.Column)
	if err != nil {
		return err
	}
	cell := sheets.Cell(spec.Log.Sheet, col, view.LogRow)
	if err := b.store.BatchWrite(ctx, spec.SpreadsheetID, []sheets.ValueRange{{Range: cell, Values: [][]any{{value}}}}); err != nil {
		return fmt.Errorf("write export log %s: %w", cell, err)
	}
	log.WithField("cell", cell).Info("export path logged")
	return nil
}
