package bom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

const orderCode = "MC25-0-0001"

// seedScenarioA loads one line item SP01 whose two recipe rows produce a
// product (2,5) and a material (10).
func seedScenarioA(f *fixture) {
	s := f.engine.schema
	f.engine.store.Load(orderBook, s.Detail.Sheet, [][]any{
		cells(map[string]any{"B": "Mã đơn", "H": "Mã SP"}),
		detailRow(orderCode, "SP01", "1.200"),
		detailRow("OTHER-1", "SP09", "10"),
	})
	f.engine.store.Load(orderBook, s.Order.Sheet, [][]any{
		cells(map[string]any{"F": "Mã đơn", "I": "Khách hàng"}),
		cells(map[string]any{"F": orderCode, "I": "Công ty A", "AK": "Anh B", "AW": "2025-03-15", "CF": "Hà Nội"}),
	})
	f.engine.store.Load(recipeBook, s.Recipe.Sheet, [][]any{
		recipeHeader(),
		cells(map[string]any{"A": "SP01", "C": "SP01", "E": "Tấm PVC", "O": "Sản phẩm"}),
		cells(map[string]any{"A": "SP01", "C": "SP01", "D": "SP01", "E": "Keo dán", "O": "Vật tư"}),
	})
	f.engine.output(2, map[string]any{"K": "2,5", "L": "bộ"})
	f.engine.output(3, map[string]any{"L": "10", "M": "m"})
}

func TestScenarioA(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	assert.False(t, res.Stale)
	require.Len(t, res.LineItems, 1)
	assert.Equal(t, "SP01", res.LineItems[0].LineCode)
	assert.Equal(t, 2, res.LineItems[0].Row)

	require.Len(t, res.SummaryByProduct, 1)
	require.Len(t, res.SummaryByMaterial, 1)

	product := res.SummaryByProduct[0]
	assert.Equal(t, "SP01", product.Code)
	assert.True(t, product.Quantity.Equal(decimal.RequireFromString("2.5")), "got %s", product.Quantity)
	assert.Equal(t, "bộ", product.Unit)
	assert.Equal(t, "Tấm PVC", product.Description)

	material := res.SummaryByMaterial[0]
	assert.Equal(t, "SP01", material.Code)
	assert.True(t, material.Quantity.Equal(decimal.NewFromInt(10)), "got %s", material.Quantity)
	assert.Equal(t, "m", material.Unit)

	require.NotNil(t, res.Order)
	assert.Equal(t, "Công ty A", res.Order.Customer)
	assert.Equal(t, []string{"15/03/2025"}, res.Order.DeliveryDates)

	// Only the main row is injected, in one batched write.
	require.Len(t, f.engine.store.Writes, 1)
	assert.Equal(t, "Data_bom!F2:N2", f.engine.store.Writes[0].Range)
	assert.Equal(t, "1.200", f.engine.store.Writes[0].Values[0][0])
	assert.Equal(t, "trắng", f.engine.store.Writes[0].Values[0][8])

	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.engine.store.Clears)
	assert.True(t, f.engine.scratchEmpty(2))
	assert.True(t, f.engine.scratchEmpty(3))
}

func TestScenarioBNoRecipe(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)
	f.engine.store.Load(recipeBook, "Data_bom", [][]any{
		recipeHeader(),
		cells(map[string]any{"A": "SP77", "C": "SP77", "O": "Sản phẩm"}),
		cells(map[string]any{"A": "SP77", "C": "SP77", "D": "VT", "O": "Vật tư"}),
	})

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	assert.True(t, res.Empty())
	assert.False(t, res.Stale)
	assert.Empty(t, f.engine.store.Writes)
	assert.Empty(t, f.engine.store.Clears)
	assert.True(t, f.loggedMessage("no recipe for line code, skipping"))
}

func TestScenarioCRecalculatesOnFourthAttempt(t *testing.T) {
	f := newFixture(t, 4, testOptions())
	seedScenarioA(f)

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Equal(t, 4, res.Lines[0].Attempts)
	assert.False(t, res.Stale)
	require.Len(t, res.SummaryByProduct, 1)
	assert.Equal(t, "2.5", res.SummaryByProduct[0].Quantity.String())
	assert.Equal(t, "10", res.SummaryByMaterial[0].Quantity.String())

	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.engine.store.Clears)
	assert.True(t, f.engine.scratchEmpty(2))
}

func TestStaleAfterRetryBudget(t *testing.T) {
	f := newFixture(t, 99, testOptions())
	seedScenarioA(f)

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	assert.True(t, res.Stale)
	require.Len(t, res.Lines, 1)
	assert.True(t, res.Lines[0].Stale)
	assert.Equal(t, 5, res.Lines[0].Attempts)

	// Kind tags are static, quantities never arrived.
	require.Len(t, res.SummaryByProduct, 1)
	assert.True(t, res.SummaryByProduct[0].Quantity.IsZero())

	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.engine.store.Clears)
	assert.True(t, f.engine.scratchEmpty(2))
}

func TestStaticSubRowDoesNotMarkReady(t *testing.T) {
	f := newFixture(t, 4, testOptions())
	seedScenarioA(f)
	// Row 3 is a sub-component whose values never depend on the injection.
	delete(f.engine.outputs, 3)
	f.engine.store.Set(recipeBook, f.engine.schema.Recipe.Sheet, 3, int(Col("L")), "10")
	f.engine.store.Set(recipeBook, f.engine.schema.Recipe.Sheet, 3, int(Col("M")), "m")

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Equal(t, 4, res.Lines[0].Attempts)
	assert.False(t, res.Stale)
	require.Len(t, res.SummaryByProduct, 1)
	assert.Equal(t, "2.5", res.SummaryByProduct[0].Quantity.String())
	require.Len(t, res.SummaryByMaterial, 1)
	assert.Equal(t, "10", res.SummaryByMaterial[0].Quantity.String())
}

func TestStaticSubRowStaysStale(t *testing.T) {
	f := newFixture(t, 99, testOptions())
	seedScenarioA(f)
	delete(f.engine.outputs, 3)
	f.engine.store.Set(recipeBook, f.engine.schema.Recipe.Sheet, 3, int(Col("L")), "10")

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	assert.True(t, res.Stale)
	assert.Equal(t, 5, res.Lines[0].Attempts)
}

func TestPartialMatch(t *testing.T) {
	f := newFixture(t, 2, testOptions())
	s := f.engine.schema
	f.engine.store.Load(orderBook, s.Detail.Sheet, [][]any{
		cells(map[string]any{"B": "Mã đơn"}),
		detailRow(orderCode, "SP01", "100"),
		detailRow(orderCode, "SP02", "200"),
		detailRow(orderCode, "SP03", "300"),
	})
	f.engine.store.Load(recipeBook, s.Recipe.Sheet, [][]any{
		recipeHeader(),
		cells(map[string]any{"A": "SP01", "C": "SP01", "O": "Sản phẩm"}),
		cells(map[string]any{"A": "SP01", "D": "VT-KEO", "O": "Vật tư"}),
		cells(map[string]any{"A": "SP02", "C": "SP02", "O": "Sản phẩm"}),
		cells(map[string]any{"A": "SP02", "D": "VT-KEO", "O": "Vật tư"}),
	})
	f.engine.output(2, map[string]any{"K": "1", "L": "bộ"})
	f.engine.output(3, map[string]any{"L": "1.250,5", "M": "kg"})
	f.engine.output(4, map[string]any{"K": "3", "L": "bộ"})
	f.engine.output(5, map[string]any{"L": "0,5", "M": ""})

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)

	assert.Len(t, res.LineItems, 3)
	assert.Len(t, res.Lines, 2)
	require.Len(t, res.SummaryByProduct, 2)
	assert.Equal(t, "SP01", res.SummaryByProduct[0].Code)
	assert.Equal(t, "SP02", res.SummaryByProduct[1].Code)

	require.Len(t, res.SummaryByMaterial, 1)
	keo := res.SummaryByMaterial[0]
	assert.Equal(t, "VT-KEO", keo.Code)
	assert.Equal(t, "1251", keo.Quantity.String())
	assert.Equal(t, "kg", keo.Unit)
	assert.Equal(t, 2, keo.Sources)

	assert.Equal(t, []string{"Data_bom!F2:N2", "Data_bom!F4:N4"}, f.engine.store.Clears)
	for _, row := range []int{2, 3, 4, 5} {
		assert.True(t, f.engine.scratchEmpty(row), "row %d", row)
	}
}

func TestEmptyOrderCode(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)

	res, err := f.pipeline.Run(context.Background(), "  ")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.LineItems)
	assert.Empty(t, f.engine.store.Reads)
}

func TestUnknownOrder(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)

	res, err := f.pipeline.Run(context.Background(), "DOES-NOT-EXIST")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Nil(t, res.Order)
}

func TestReadFailureStillClears(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)
	f.engine.store.AfterWrite = func(string, []sheets.ValueRange) {
		f.engine.store.FailReads = 1
	}

	_, err := f.pipeline.Run(context.Background(), orderCode)
	require.Error(t, err)
	assert.ErrorIs(t, err, sheets.ErrInjected)
	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.engine.store.Clears)
	assert.True(t, f.engine.scratchEmpty(2))
}

func TestWriteFailureClears(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)
	f.engine.store.FailWrites = 1

	_, err := f.pipeline.Run(context.Background(), orderCode)
	require.ErrorIs(t, err, sheets.ErrInjected)
	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.engine.store.Clears)
}

func TestClearRetried(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)
	f.engine.store.FailClears = 2

	res, err := f.pipeline.Run(context.Background(), orderCode)
	require.NoError(t, err)
	assert.False(t, res.Empty())
	assert.True(t, f.engine.scratchEmpty(2))
	assert.Empty(t, f.alarm.ranges)
}

func TestClearFailureRaisesAlarm(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)
	f.engine.store.FailClears = 3

	_, err := f.pipeline.Run(context.Background(), orderCode)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScratchDirty)
	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.alarm.ranges)
	assert.True(t, f.loggedMessage("scratch range left dirty"))
}

func TestScratchBusy(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	seedScenarioA(f)

	held, err := f.locker.Acquire(context.Background(), LeaseKey(recipeBook, "Data_bom!F2:N2"), 0, time.Second)
	require.NoError(t, err)
	defer held.Release(context.Background())

	_, err = f.pipeline.Run(context.Background(), orderCode)
	require.ErrorIs(t, err, ErrScratchBusy)
	assert.Empty(t, f.engine.store.Writes)
}

func TestCancelledWhileWaitingStillClears(t *testing.T) {
	f := newFixture(t, 3, testOptions())
	seedScenarioA(f)

	ctx, cancel := context.WithCancel(context.Background())
	f.pipeline.evaluator.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := f.pipeline.Run(ctx, orderCode)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, []string{"Data_bom!F2:N2"}, f.engine.store.Clears)
	assert.True(t, f.engine.scratchEmpty(2))
}

func TestResolveOrderCode(t *testing.T) {
	f := newFixture(t, 1, testOptions())
	f.engine.store.Load(orderBook, "File_BOM_ct", [][]any{
		{"STT", "Mã đơn hàng"},
		{"1", "MC25-0-0001"},
		{"2", "MC25-0-0002"},
		{"3", ""},
	})

	code, row, err := f.pipeline.ResolveOrderCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MC25-0-0002", code)
	assert.Equal(t, 3, row)

	empty := newFixture(t, 1, testOptions())
	code, row, err = empty.pipeline.ResolveOrderCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", code)
	assert.Zero(t, row)
}

func TestIssueLines(t *testing.T) {
	res := &Result{
		SummaryByProduct:  []*AggregateEntry{{Code: "SP", Quantity: decimal.NewFromInt(2), Unit: "bộ"}},
		SummaryByMaterial: []*AggregateEntry{{Code: "VT", Quantity: decimal.NewFromInt(5), Unit: "m"}},
	}
	lines := res.IssueLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "SP", lines[0].Code)
	assert.Equal(t, "VT", lines[1].Code)
}
