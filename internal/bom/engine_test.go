package bom

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/lease"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

const (
	orderBook  = "orders"
	recipeBook = "recipes"
)

// cells builds a sheet row from column letters.
func cells(values map[string]any) []any {
	var row []any
	for letters, v := range values {
		c := int(Col(letters))
		for len(row) <= c {
			row = append(row, "")
		}
		row[c] = v
	}
	return row
}

// fakeEngine mimics the spreadsheet engine: formula outputs of the recipe
// sheet appear only after a scratch write and a number of reads.
type fakeEngine struct {
	mu      sync.Mutex
	store   *sheets.MemoryStore
	schema  Schema
	readyAt int
	outputs map[int]map[string]any

	injected bool
	reads    int
	injects  int
}

func newFakeEngine(schema Schema, readyAt int) *fakeEngine {
	e := &fakeEngine{
		store:   sheets.NewMemoryStore(),
		schema:  schema,
		readyAt: readyAt,
		outputs: make(map[int]map[string]any),
	}

	recipe := schema.Recipe.Sheet
	e.store.AfterWrite = func(spreadsheetID string, data []sheets.ValueRange) {
		if spreadsheetID != recipeBook {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.injected, e.reads = true, 0
		e.injects++
	}
	e.store.BeforeRead = func(spreadsheetID, rng string) {
		r, err := sheets.ParseRange(rng)
		if err != nil || spreadsheetID != recipeBook || r.Sheet != recipe {
			return
		}
		e.mu.Lock()
		if !e.injected {
			e.mu.Unlock()
			return
		}
		e.reads++
		recalculated := e.reads >= e.readyAt
		e.mu.Unlock()
		if recalculated {
			e.apply(false)
		}
	}
	e.store.AfterClear = func(spreadsheetID string, _ []string) {
		if spreadsheetID != recipeBook {
			return
		}
		e.mu.Lock()
		e.injected = false
		e.mu.Unlock()
		e.apply(true)
	}
	return e
}

// output registers formula results that appear on row after recalculation.
func (e *fakeEngine) output(row int, values map[string]any) {
	e.outputs[row] = values
	e.apply(true)
}

func (e *fakeEngine) apply(blank bool) {
	for row, values := range e.outputs {
		for letters, v := range values {
			if blank {
				v = ""
			}
			e.store.Set(recipeBook, e.schema.Recipe.Sheet, row, int(Col(letters)), v)
		}
	}
}

// scratchEmpty reports whether every scratch cell of row is blank.
func (e *fakeEngine) scratchEmpty(row int) bool {
	r := e.schema.Recipe
	for c := r.ScratchFrom; c <= r.ScratchTo; c++ {
		if e.store.Get(recipeBook, r.Sheet, row, int(c)) != "" {
			return false
		}
	}
	return true
}

func detailRow(order, line string, length any) []any {
	return cells(map[string]any{
		"B": order, "H": line,
		"Q": length, "R": "800", "S": 2, "T": "", "U": "", "V": "", "W": "", "X": "", "AC": "trắng",
	})
}

func recipeHeader() []any {
	return cells(map[string]any{"A": "Mã", "B": "Mã SP", "C": "Mã SP", "D": "Mã vật tư sản xuất", "O": "Loại"})
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fixture struct {
	engine   *fakeEngine
	pipeline *Pipeline
	hook     *test.Hook
	alarm    *recordingAlarm
	locker   *lease.LocalLocker
}

type recordingAlarm struct {
	mu     sync.Mutex
	ranges []string
	errs   []error
}

func (a *recordingAlarm) ScratchDirty(_ context.Context, _ string, ranges []string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ranges = append(a.ranges, ranges...)
	a.errs = append(a.errs, err)
}

func newFixture(t *testing.T, readyAt int, opts Options) *fixture {
	t.Helper()

	schema := DefaultSchema()
	engine := newFakeEngine(schema, readyAt)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	alarm := &recordingAlarm{}
	locker := lease.NewLocalLocker()

	p, err := New(Config{
		Store:               engine.store,
		OrderSpreadsheetID:  orderBook,
		RecipeSpreadsheetID: recipeBook,
		Schema:              schema,
		Locker:              locker,
		Alarm:               alarm,
		Options:             opts,
		Logger:              logger,
	})
	require.NoError(t, err)
	p.evaluator.sleep = noSleep

	return &fixture{engine: engine, pipeline: p, hook: hook, alarm: alarm, locker: locker}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.LeaseWait = 20 * time.Millisecond
	return opts
}

func (f *fixture) loggedMessage(msg string) bool {
	for _, e := range f.hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}
