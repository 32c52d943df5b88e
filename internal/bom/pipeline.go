package bom

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/lease"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

// Config wires a Pipeline.
type Config struct {
	Store               sheets.RowStore
	OrderSpreadsheetID  string
	RecipeSpreadsheetID string
	Schema              Schema
	Locker              lease.Locker
	Alarm               Alarm
	Options             Options
	Logger              logrus.FieldLogger
}

// Result is the expanded bill of materials of one order.
type Result struct {
	OrderCode         string            `json:"order_code"`
	Order             *OrderHeader      `json:"order,omitempty"`
	LineItems         []OrderLineItem   `json:"line_items"`
	Lines             []*Evaluation     `json:"-"`
	Rows              []ComputedRow     `json:"-"`
	SummaryByProduct  []*AggregateEntry `json:"summary_by_product"`
	SummaryByMaterial []*AggregateEntry `json:"summary_by_material"`
	Stale             bool              `json:"stale"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// Empty reports whether the order produced no aggregate entries.
func (r *Result) Empty() bool {
	return len(r.SummaryByProduct) == 0 && len(r.SummaryByMaterial) == 0
}

// Pipeline locates, evaluates and aggregates one order at a time.
type Pipeline struct {
	locator   *Locator
	evaluator *Evaluator
	schema    Schema
	logger    logrus.FieldLogger
	now       func() time.Time
}

// New validates the schema and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}
	if cfg.Locker == nil {
		cfg.Locker = lease.NewLocalLocker()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Pipeline{
		locator:   NewLocator(cfg.Store, cfg.OrderSpreadsheetID, cfg.RecipeSpreadsheetID, cfg.Schema, cfg.Logger),
		evaluator: NewEvaluator(cfg.Store, cfg.RecipeSpreadsheetID, cfg.Schema, cfg.Locker, cfg.Alarm, cfg.Options, cfg.Logger),
		schema:    cfg.Schema,
		logger:    cfg.Logger,
		now:       time.Now,
	}, nil
}

// Locator exposes the read side of the pipeline.
func (p *Pipeline) Locator() *Locator {
	return p.locator
}

// Schema returns the column layout the pipeline was built with.
func (p *Pipeline) Schema() Schema {
	return p.schema
}

// ResolveOrderCode reads the current order code from the selector column.
func (p *Pipeline) ResolveOrderCode(ctx context.Context) (string, int, error) {
	return p.locator.ResolveOrderCode(ctx)
}

// Run expands orderCode. Line items without a line code or without recipe rows
// are skipped; an empty or unknown order yields an empty Result.
func (p *Pipeline) Run(ctx context.Context, orderCode string) (*Result, error) {
	res := &Result{
		OrderCode:         orderCode,
		LineItems:         []OrderLineItem{},
		SummaryByProduct:  []*AggregateEntry{},
		SummaryByMaterial: []*AggregateEntry{},
		GeneratedAt:       p.now(),
	}
	log := p.logger.WithField("order_code", orderCode)

	items, err := p.locator.LocateLineItems(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	res.LineItems = items
	if len(items) == 0 {
		return res, nil
	}

	header, err := p.locator.LocateOrderHeader(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	res.Order = header

	recipes, err := p.locator.LoadRecipes(ctx)
	if err != nil {
		return nil, err
	}

	agg := NewAggregator(p.schema.Recipe)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		itemLog := log.WithFields(logrus.Fields{"line_code": item.LineCode, "row": item.Row})
		if item.LineCode == "" {
			itemLog.Warn("line item has no line code, skipping")
			continue
		}

		refs := recipes.Match(item.LineCode)
		if len(refs) == 0 {
			itemLog.Info("no recipe for line code, skipping")
			continue
		}

		ev, err := p.evaluator.Evaluate(ctx, item, refs)
		if err != nil {
			return nil, fmt.Errorf("evaluate line %s: %w", item.LineCode, err)
		}

		res.Lines = append(res.Lines, ev)
		res.Rows = append(res.Rows, ev.Rows...)
		res.Stale = res.Stale || ev.Stale
		agg.Add(ev.Rows...)
	}

	summary := agg.Summary()
	res.SummaryByProduct = summary.Products
	res.SummaryByMaterial = summary.Materials

	log.WithFields(logrus.Fields{
		"line_items": len(items),
		"products":   len(summary.Products),
		"materials":  len(summary.Materials),
		"stale":      res.Stale,
	}).Info("bill of materials expanded")
	return res, nil
}

// IssueLines flattens the summary for the stock-issue log, products first.
func (r *Result) IssueLines() []sheets.IssueLine {
	lines := make([]sheets.IssueLine, 0, len(r.SummaryByProduct)+len(r.SummaryByMaterial))
	for _, group := range [][]*AggregateEntry{r.SummaryByProduct, r.SummaryByMaterial} {
		for _, e := range group {
			lines = append(lines, sheets.IssueLine{Code: e.Code, Quantity: e.Quantity, Unit: e.Unit})
		}
	}
	return lines
}
