package bom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/lease"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/metrics"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

// Options tunes the inject, poll and clear protocol.
type Options struct {
	SettleDelay   time.Duration
	MaxAttempts   int
	ClearAttempts int
	ClearBackoff  time.Duration
	LeaseTTL      time.Duration
	LeaseWait     time.Duration
}

// DefaultOptions matches the recalculation speed of the production workbook.
func DefaultOptions() Options {
	return Options{
		SettleDelay:   600 * time.Millisecond,
		MaxAttempts:   5,
		ClearAttempts: 3,
		ClearBackoff:  200 * time.Millisecond,
		LeaseTTL:      2 * time.Minute,
		LeaseWait:     30 * time.Second,
	}
}

// Alarm is notified when a scratch range could not be restored.
type Alarm interface {
	ScratchDirty(ctx context.Context, spreadsheetID string, ranges []string, err error)
}

// Evaluation is the outcome of one line item. Stale is set when the recipe
// sheet had not finished recalculating after the last attempt; Rows then
// holds whatever that attempt read.
type Evaluation struct {
	LineItem OrderLineItem `json:"line_item"`
	Rows     []ComputedRow `json:"rows"`
	Attempts int           `json:"attempts"`
	Stale    bool          `json:"stale"`
}

// Evaluator runs the inject, wait, read, clear protocol against the recipe sheet.
type Evaluator struct {
	store         sheets.RowStore
	spreadsheetID string
	schema        Schema
	locker        lease.Locker
	alarm         Alarm
	opts          Options
	logger        logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewEvaluator creates an Evaluator. alarm may be nil.
func NewEvaluator(store sheets.RowStore, spreadsheetID string, schema Schema, locker lease.Locker, alarm Alarm, opts Options, logger logrus.FieldLogger) *Evaluator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.ClearAttempts < 1 {
		opts.ClearAttempts = 1
	}
	return &Evaluator{
		store:         store,
		spreadsheetID: spreadsheetID,
		schema:        schema,
		locker:        locker,
		alarm:         alarm,
		opts:          opts,
		logger:        logger,
		sleep:         sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LeaseKey names the lease guarding one scratch range.
func LeaseKey(spreadsheetID, rng string) string {
	return "bom-scratch:" + spreadsheetID + ":" + rng
}

// Evaluate injects the line item's measurements into the scratch span of the
// main (first) recipe row, polls until the sheet has recalculated and reads
// back the rows of this line item. The scratch span is always cleared before
// Evaluate returns, also when reading fails or ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, item OrderLineItem, refs []RecipeRowRef) (*Evaluation, error) {
	ev := &Evaluation{LineItem: item, Rows: []ComputedRow{}}
	if len(refs) == 0 {
		return ev, nil
	}

	main := refs[0]
	rng := e.schema.Recipe.ScratchRange(main.Row)
	log := e.logger.WithFields(logrus.Fields{
		"order_code": item.OrderCode,
		"line_code":  item.LineCode,
		"range":      rng,
	})

	held, err := e.locker.Acquire(ctx, LeaseKey(e.spreadsheetID, rng), e.opts.LeaseTTL, e.opts.LeaseWait)
	if err != nil {
		metrics.BOMEvaluations.WithLabelValues("error").Inc()
		if errors.Is(err, lease.ErrNotObtained) {
			return nil, fmt.Errorf("%w: %s", ErrScratchBusy, rng)
		}
		return nil, fmt.Errorf("acquire scratch lease: %w", err)
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("failed to release scratch lease")
		}
	}()

	values := make([]any, e.schema.Recipe.ScratchWidth())
	for i := range values {
		values[i] = ""
		if i < len(item.Measurements) && item.Measurements[i] != nil {
			values[i] = item.Measurements[i]
		}
	}

	if err := e.store.BatchWrite(ctx, e.spreadsheetID, []sheets.ValueRange{{Range: rng, Values: [][]any{values}}}); err != nil {
		metrics.BOMEvaluations.WithLabelValues("error").Inc()
		// The write may have landed before the error surfaced.
		return nil, errors.Join(fmt.Errorf("inject scratch %s: %w", rng, err), e.clear(ctx, rng, log))
	}
	log.Debug("measurements injected")

	rows, attempts, ready, readErr := e.poll(ctx, item, refs, log)
	clearErr := e.clear(ctx, rng, log)
	if readErr != nil || clearErr != nil {
		metrics.BOMEvaluations.WithLabelValues("error").Inc()
		return nil, errors.Join(readErr, clearErr)
	}

	ev.Rows = rows
	ev.Attempts = attempts
	ev.Stale = !ready
	metrics.BOMReadAttempts.Observe(float64(attempts))
	if ev.Stale {
		metrics.BOMEvaluations.WithLabelValues("stale").Inc()
		log.WithField("attempt", attempts).Warn("recipe sheet did not recalculate in time, using last read")
	} else {
		metrics.BOMEvaluations.WithLabelValues("fresh").Inc()
	}
	return ev, nil
}

// poll waits for recalculation and returns the collected rows of the last read.
func (e *Evaluator) poll(ctx context.Context, item OrderLineItem, refs []RecipeRowRef, log logrus.FieldLogger) ([]ComputedRow, int, bool, error) {
	r := e.schema.Recipe
	rng := sheets.Columns(r.Sheet, 0, int(r.LastColumn), 1)

	var data [][]any
	attempts := 0
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if err := e.sleep(ctx, e.opts.SettleDelay); err != nil {
			return nil, attempts, false, err
		}

		read, err := e.store.ReadRange(ctx, e.spreadsheetID, rng)
		if err != nil {
			return nil, attempts, false, fmt.Errorf("read recalculated recipes: %w", err)
		}
		data, attempts = read, attempt

		if e.ready(data, refs[0].Row) {
			return e.collect(data, item, refs), attempts, true, nil
		}
		log.WithField("attempt", attempt).Debug("recipe sheet not recalculated yet")
	}
	return e.collect(data, item, refs), attempts, false, nil
}

// ready reports whether the injected main row shows a formula output.
// Other rows of the line item are static and say nothing about recalculation.
func (e *Evaluator) ready(data [][]any, mainRow int) bool {
	if mainRow < 1 || mainRow > len(data) {
		return false
	}
	row := data[mainRow-1]
	for _, c := range e.schema.Recipe.Ready {
		if c.Of(row) != "" {
			return true
		}
	}
	return false
}

// collect returns the rows owned by the line item plus its matched recipe
// rows, in sheet order.
func (e *Evaluator) collect(data [][]any, item OrderLineItem, refs []RecipeRowRef) []ComputedRow {
	r := e.schema.Recipe
	picked := make(map[int]bool)
	for i := e.schema.HeaderRows; i < len(data); i++ {
		if sameCode(r.Owner.Of(data[i]), item.LineCode) {
			picked[i+1] = true
		}
	}
	for _, ref := range refs {
		if ref.Row-1 < len(data) {
			picked[ref.Row] = true
		}
	}

	rowNums := make([]int, 0, len(picked))
	for n := range picked {
		rowNums = append(rowNums, n)
	}
	sort.Ints(rowNums)

	out := make([]ComputedRow, 0, len(rowNums))
	for _, n := range rowNums {
		cells := append([]any(nil), data[n-1]...)
		out = append(out, ComputedRow{
			LineIndex: item.Index,
			LineCode:  item.LineCode,
			Row:       n,
			Cells:     cells,
		})
	}
	return out
}

// clear empties the scratch range on a context that survives cancellation.
// Persistent failure raises the alarm.
func (e *Evaluator) clear(ctx context.Context, rng string, log logrus.FieldLogger) error {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= e.opts.ClearAttempts; attempt++ {
		if err = e.store.BatchClear(ctx, e.spreadsheetID, []string{rng}); err == nil {
			log.Debug("scratch range cleared")
			return nil
		}
		log.WithError(err).WithField("attempt", attempt).Warn("failed to clear scratch range")
		if attempt < e.opts.ClearAttempts {
			_ = e.sleep(ctx, e.opts.ClearBackoff*time.Duration(attempt))
		}
	}

	metrics.ScratchClearFailures.Inc()
	log.WithError(err).Error("scratch range left dirty")
	if e.alarm != nil {
		e.alarm.ScratchDirty(ctx, e.spreadsheetID, []string{rng}, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrScratchDirty, rng, err)
}
