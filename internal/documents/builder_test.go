package documents

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

const book = "main"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// row places values at the given zero-based columns.
func row(values map[int]any) []any {
	var r []any
	for c, v := range values {
		for len(r) <= c {
			r = append(r, "")
		}
		r[c] = v
	}
	return r
}

func seedDelivery(store *sheets.MemoryStore) {
	store.Load(book, "Xuat_BB_GN", [][]any{
		{"", ""},
		{"Mã đơn", "DH-01"},
	})
	store.Load(book, "Don_hang", [][]any{
		{"hdr"},
		row(map[int]any{5: "DH-01", 8: "Công ty A", 48: "20/05/2025"}),
	})
	store.Load(book, "Don_hang_ct", [][]any{
		{"hdr"},
		row(map[int]any{1: "DH-01", 9: "Cửa nhựa", 22: "2", 23: "bộ"}),
		row(map[int]any{1: "DH-02", 9: "Khác", 22: "9"}),
		row(map[int]any{1: "DH-01", 9: "Khung", 22: "4", 23: "cái", 24: "giao sau"}),
	})
}

type stubRunner struct {
	res  *bom.Result
	code string
}

func (s *stubRunner) Run(_ context.Context, code string) (*bom.Result, error) {
	s.code = code
	return s.res, nil
}

func TestBuildDeliveryReceipt(t *testing.T) {
	store := sheets.NewMemoryStore()
	seedDelivery(store)
	reg := DefaultRegistry(book)
	spec, ok := reg.Get("bbgn")
	require.True(t, ok)

	b := NewBuilder(store, nil, quietLogger())
	view, err := b.Build(context.Background(), spec, "")
	require.NoError(t, err)

	assert.Equal(t, "DH-01", view.Code)
	assert.Equal(t, 2, view.LogRow)
	assert.Equal(t, "Công ty A", view.Header["customer"])
	assert.Equal(t, "20/05/2025", view.Header["delivery_date"])

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "1", view.Lines[0]["stt"])
	assert.Equal(t, "Cửa nhựa", view.Lines[0]["name"])
	assert.Equal(t, "2", view.Lines[1]["stt"])
	assert.Equal(t, "giao sau", view.Lines[1]["note"])

	assert.True(t, view.Flags["has_quantity"])
	assert.True(t, view.Flags["has_note"])
	assert.False(t, view.Flags["has_total"])

	require.NoError(t, b.WriteLog(context.Background(), spec, view, "https://storage.googleapis.com/docs/BBGN_DH-01.pdf"))
	assert.Equal(t, "https://storage.googleapis.com/docs/BBGN_DH-01.pdf", store.Get(book, "Xuat_BB_GN", 2, 3))
}

func TestBuildDeliveryExplicitCode(t *testing.T) {
	store := sheets.NewMemoryStore()
	seedDelivery(store)
	spec, _ := DefaultRegistry(book).Get("bbgn")
	b := NewBuilder(store, nil, quietLogger())

	view, err := b.Build(context.Background(), spec, "DH-02")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Khác", view.Lines[0]["name"])
	assert.Empty(t, view.Header["customer"])
	assert.Zero(t, view.LogRow, "DH-02 is not the selected order")

	// The selected order's log cell is left alone.
	require.NoError(t, b.WriteLog(context.Background(), spec, view, "/exports/BBGN_DH-02.pdf"))
	assert.Empty(t, store.Get(book, "Xuat_BB_GN", 2, 3))
	assert.Empty(t, store.Writes)

	view, err = b.Build(context.Background(), spec, "DH-01")
	require.NoError(t, err)
	assert.Equal(t, 2, view.LogRow)

	_, err = b.Build(context.Background(), spec, "DH-99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuildEmptySelector(t *testing.T) {
	store := sheets.NewMemoryStore()
	spec, _ := DefaultRegistry(book).Get("bbgn")
	b := NewBuilder(store, nil, quietLogger())

	_, err := b.Build(context.Background(), spec, "")
	assert.ErrorIs(t, err, ErrNoOrderCode)
}

func TestBuildMaterialRequest(t *testing.T) {
	store := sheets.NewMemoryStore()
	store.Load(book, "File_BOM_ct", [][]any{
		{"STT", "Mã đơn"},
		{"1", "MC25-0-0001"},
		{"2", "MC25-0-0002"},
	})
	runner := &stubRunner{res: &bom.Result{
		OrderCode: "MC25-0-0001",
		Order:     &bom.OrderHeader{Customer: "Công ty B", DeliveryDates: []string{"01/06/2025"}},
		LineItems: []bom.OrderLineItem{{LineCode: "SP01"}},
		SummaryByProduct: []*bom.AggregateEntry{
			{Code: "SP01", Kind: bom.KindProduct, Quantity: decimal.RequireFromString("2.5"), Unit: "bộ"},
		},
		SummaryByMaterial: []*bom.AggregateEntry{
			{Code: "VT-01", Kind: bom.KindMaterial, Quantity: decimal.NewFromInt(1200), Unit: "m"},
		},
		Stale: true,
	}}

	spec, _ := DefaultRegistry(book).Get("ycvt")
	b := NewBuilder(store, runner, quietLogger())

	view, err := b.Build(context.Background(), spec, "MC25-0-0001")
	require.NoError(t, err)
	assert.Equal(t, "MC25-0-0001", runner.code)
	assert.Equal(t, 2, view.LogRow)
	assert.True(t, view.Stale)
	assert.Equal(t, "Công ty B", view.Header["customer"])

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "2,5", view.Lines[0]["quantity"])
	assert.Equal(t, "2", view.Lines[1]["stt"])
	assert.Equal(t, "1.200", view.Lines[1]["quantity"])
	assert.True(t, view.Flags["has_materials"])

	// The selector's last code is used when none is given.
	_, err = b.Build(context.Background(), spec, "")
	require.NoError(t, err)
	assert.Equal(t, "MC25-0-0002", runner.code)

	runner.res = &bom.Result{}
	_, err = b.Build(context.Background(), spec, "MC25-0-0001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteLogUnknownRow(t *testing.T) {
	store := sheets.NewMemoryStore()
	spec, _ := DefaultRegistry(book).Get("ycvt")
	b := NewBuilder(store, nil, quietLogger())

	require.NoError(t, b.WriteLog(context.Background(), spec, &View{Code: "X"}, "path"))
	assert.Empty(t, store.Writes)
}

func TestSpecValidate(t *testing.T) {
	assert.ElementsMatch(t, []string{"bbgn", "ycvt"}, DefaultRegistry(book).Names())

	_, err := NewRegistry(&Spec{Name: "x", Template: "x.tmpl", Source: SourceTable, Selector: Selector{Column: "B"}})
	assert.Error(t, err, "table documents need lines")

	_, err = NewRegistry(&Spec{Name: "x", Template: "x.tmpl", Source: "csv", Selector: Selector{Column: "B"}})
	assert.Error(t, err)

	bad := &Spec{Name: "x", Template: "x.tmpl", Source: SourceTable, Selector: Selector{Column: "B"},
		Lines: &Table{Sheet: "S", LastColumn: "Z", KeyColumns: []string{"B"}, Fields: []Field{{Name: "n", Column: "1"}}}}
	_, err = NewRegistry(bad)
	assert.Error(t, err)
}

func TestFileNameFor(t *testing.T) {
	spec, _ := DefaultRegistry(book).Get("bbgn")
	assert.Equal(t, "BBGN_DH_01_A.pdf", spec.FileNameFor("DH/01 A"))

	anon := &Spec{Name: "plan"}
	assert.Equal(t, "PLAN_X.pdf", anon.FileNameFor("X"))
}
