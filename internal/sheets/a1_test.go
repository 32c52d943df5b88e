// File: internal/sheets/a1_test.go
package sheets

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnName(t *testing.T) {
	tests := []struct {
		col      int
		expected string
	}{
		{0, "A"},
		{5, "F"},
		{25, "Z"},
		{26, "AA"},
		{28, "AC"},
		{30, "AE"},
		{82, "CE"},
		{701, "ZZ"},
		{702, "AAA"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ColumnName(tt.col))

			idx, err := ColumnIndex(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.col, idx)
		})
	}
}

func TestColumnIndexInvalid(t *testing.T) {
	_, err := ColumnIndex("")
	assert.Error(t, err)
	_, err = ColumnIndex("A1")
	assert.Error(t, err)
}

func TestRangeBuilders(t *testing.T) {
	assert.Equal(t, "Data_bom!F12:N12", Span("Data_bom", 5, 13, 12))
	assert.Equal(t, "Xuat_BB_GN!B2", Cell("Xuat_BB_GN", 1, 2))
	assert.Equal(t, "Don_hang_PVC_ct!A2:AE", Columns("Don_hang_PVC_ct", 0, 30, 2))
	assert.Equal(t, "'Bảng tính 1'!A1", Cell("Bảng tính 1", 0, 1))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected Range
	}{
		{"open bottom", "Data_bom!A1:N", Range{Sheet: "Data_bom", StartCol: 0, StartRow: 1, EndCol: 13}},
		{"single cell", "Xuat_BB_GN!B2", Range{Sheet: "Xuat_BB_GN", StartCol: 1, StartRow: 2, EndCol: 1, EndRow: 2}},
		{"whole column", "File_BOM_ct!B:B", Range{Sheet: "File_BOM_ct", StartCol: 1, StartRow: 1, EndCol: 1}},
		{"quoted sheet", "'My ''sheet'''!F12:N12", Range{Sheet: "My 'sheet'", StartCol: 5, StartRow: 12, EndCol: 13, EndRow: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRange(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}

	_, err := ParseRange("Sheet!N5:A1")
	assert.Error(t, err)
	_, err = ParseRange("Sheet!")
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "abc", CellString("  abc "))
	assert.Equal(t, "2.5", CellString(2.5))
	assert.Equal(t, "7", CellString(7))
	assert.Equal(t, "", Value([]any{"a"}, 3))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Load("book", "S", [][]any{
		{"h1", "h2", "h3"},
		{"a", "b", ""},
	})

	rows, err := store.ReadRange(ctx, "book", "S!A1:C")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"h1", "h2", "h3"}, {"a", "b"}}, rows)

	require.NoError(t, store.BatchWrite(ctx, "book", []ValueRange{{Range: "S!B4:C4", Values: [][]any{{"x", "y"}}}}))
	assert.Equal(t, "y", store.Get("book", "S", 4, 2))

	require.NoError(t, store.BatchClear(ctx, "book", []string{"S!B4:C4"}))
	rows, err = store.ReadRange(ctx, "book", "S!A1:C")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "trailing empty rows are trimmed")

	store.FailClears = 1
	assert.ErrorIs(t, store.BatchClear(ctx, "book", []string{"S!A1"}), ErrInjected)
	assert.NoError(t, store.BatchClear(ctx, "book", []string{"S!A1"}))
}

func TestAppendStockIssue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Load("stock", "xuat_kho_VT", [][]any{
		{"ID", "Đơn hàng", "Ngày", "Mã", "", "Số lượng", "ĐVT"},
		{"OLD00001", "DH-1", "01/01/2024", "VT-1", "", 1, "m"},
	})

	svc := NewService(nil, store, ServiceConfig{StockSpreadsheetID: "stock"})
	n, err := svc.AppendStockIssue(ctx, "DH-2", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), []IssueLine{
		{Code: "SP-1", Quantity: decimal.NewFromInt(3), Unit: "bộ"},
		{Code: "VT-2", Quantity: decimal.RequireFromString("1.25"), Unit: "kg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, store.Appends, 1)
	assert.Equal(t, "xuat_kho_VT!A3:G4", store.Appends[0].Range)
	assert.Equal(t, "DH-2", store.Get("stock", "xuat_kho_VT", 3, 1))
	assert.Equal(t, "VT-2", store.Get("stock", "xuat_kho_VT", 4, 3))
	assert.Equal(t, "01/02/2024", store.Get("stock", "xuat_kho_VT", 4, 2))

	n, err = svc.AppendStockIssue(ctx, "DH-3", time.Now(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAppendStockIssueConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Load("stock", "xuat_kho_VT", [][]any{
		{"ID", "Đơn hàng", "Ngày", "Mã", "", "Số lượng", "ĐVT"},
	})
	svc := NewService(nil, store, ServiceConfig{StockSpreadsheetID: "stock"})

	const orders = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, orders)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.AppendStockIssue(ctx, fmt.Sprintf("DH-%d", i), time.Now(), []IssueLine{
				{Code: "SP-1", Quantity: decimal.NewFromInt(1), Unit: "bộ"},
				{Code: "VT-1", Quantity: decimal.NewFromInt(2), Unit: "m"},
			})
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := store.ReadRange(ctx, "stock", "xuat_kho_VT!A1:G")
	require.NoError(t, err)
	require.Len(t, rows, 1+2*orders)

	perOrder := make(map[string]int)
	for _, row := range rows[1:] {
		perOrder[CellString(row[1])]++
	}
	for i := 0; i < orders; i++ {
		assert.Equal(t, 2, perOrder[fmt.Sprintf("DH-%d", i)], "DH-%d", i)
	}
}

func TestMemoryStoreAppendSkipsTrailingBlanks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Load("b", "S", [][]any{{"h"}, {"x"}, {""}})

	rng, err := store.Append(ctx, "b", "S!A1:B", [][]any{{"y", "z"}})
	require.NoError(t, err)
	assert.Equal(t, "S!A3:B3", rng)
	assert.Equal(t, "y", store.Get("b", "S", 3, 0))

	store.FailWrites = 1
	_, err = store.Append(ctx, "b", "S!A1:B", [][]any{{"w"}})
	assert.ErrorIs(t, err, ErrInjected)
}
