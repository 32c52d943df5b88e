// File: cmd/api/test_helpers.go
// Description: Test helpers for API handler tests

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/convert"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/documents"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/lease"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/render"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

const (
	ordersBook  = "orders"
	recipesBook = "recipes"
	stockBook   = "stock"
	testOrder   = "MC25-0-0001"
)

// row builds a sheet row from column letters.
func row(t *testing.T, values map[string]any) []any {
	t.Helper()
	var out []any
	for letters, v := range values {
		c, err := sheets.ColumnIndex(letters)
		if err != nil {
			t.Fatalf("bad column %q: %v", letters, err)
		}
		for len(out) <= c {
			out = append(out, "")
		}
		out[c] = v
	}
	return out
}

type stubConverter struct {
	mu       sync.Mutex
	requests []convert.Request
	err      error
}

func (s *stubConverter) Convert(_ context.Context, req convert.Request) (*convert.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &convert.Result{PathToFile: "https://storage.googleapis.com/test/" + req.FileName, FileName: req.FileName}, nil
}

type testEnv struct {
	store     *sheets.MemoryStore
	converter *stubConverter
	locker    *lease.LocalLocker
	hook      *test.Hook
}

// newTestApp creates an app backed by an in-memory spreadsheet. The recipe
// sheet "recalculates" as soon as measurements are written to it. No database
// is configured.
func newTestApp(t *testing.T) (*app, *testEnv) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	store := sheets.NewMemoryStore()
	seedSheets(t, store)

	env := &testEnv{store: store, converter: &stubConverter{}, locker: lease.NewLocalLocker(), hook: hook}

	cfg := config{port: 4000, env: "test"}
	a := &app{
		config:    cfg,
		logger:    logger,
		store:     store,
		sheets:    sheets.NewService(nil, store, sheets.ServiceConfig{StockSpreadsheetID: stockBook}),
		converter: env.converter,
	}

	opts := bom.DefaultOptions()
	opts.SettleDelay = time.Millisecond
	opts.ClearBackoff = time.Millisecond
	opts.LeaseWait = 50 * time.Millisecond

	p, err := bom.New(bom.Config{
		Store:               store,
		OrderSpreadsheetID:  ordersBook,
		RecipeSpreadsheetID: recipesBook,
		Schema:              bom.DefaultSchema(),
		Locker:              env.locker,
		Alarm:               a,
		Options:             opts,
		Logger:              logger,
	})
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}
	a.pipeline = p
	a.registry = documents.DefaultRegistry(ordersBook)
	a.builder = documents.NewBuilder(store, p, logger)
	if a.renderer, err = render.New(); err != nil {
		t.Fatalf("Failed to parse templates: %v", err)
	}

	return a, env
}

// seedSheets loads one order with a single line item SP01 whose recipe yields
// product SP01 (2,5 bộ) and material VT-KEO (10 m).
func seedSheets(t *testing.T, store *sheets.MemoryStore) {
	t.Helper()

	store.Load(ordersBook, "Don_hang_PVC_ct", [][]any{
		row(t, map[string]any{"B": "Mã đơn", "H": "Mã SP"}),
		row(t, map[string]any{"B": testOrder, "H": "SP01", "Q": "1.200", "R": "800", "S": 2, "AC": "trắng"}),
	})
	store.Load(ordersBook, "Don_hang", [][]any{
		row(t, map[string]any{"F": "Mã đơn", "I": "Khách hàng"}),
		row(t, map[string]any{"F": testOrder, "I": "Công ty A", "AK": "Anh B", "AL": "0901", "AW": "2025-03-15", "CF": "Hà Nội"}),
	})
	store.Load(ordersBook, "Don_hang_ct", [][]any{
		row(t, map[string]any{"B": "Mã đơn", "J": "Tên"}),
		row(t, map[string]any{"B": testOrder, "J": "Cửa nhựa", "W": "2", "X": "bộ"}),
	})
	store.Load(ordersBook, "Xuat_BB_GN", [][]any{
		row(t, map[string]any{"A": "Mã đơn"}),
		row(t, map[string]any{"B": testOrder}),
	})
	store.Load(stockBook, "xuat_kho_VT", [][]any{
		{"ID", "Mã đơn", "Ngày", "Mã VT", "", "Số lượng", "ĐVT"},
	})

	store.Load(recipesBook, "Data_bom", [][]any{
		row(t, map[string]any{"A": "Mã", "C": "Mã SP", "D": "Mã vật tư sản xuất", "O": "Loại"}),
		row(t, map[string]any{"A": "SP01", "C": "SP01", "E": "Cửa PVC", "O": "Sản phẩm"}),
		row(t, map[string]any{"A": "SP01", "C": "SP01", "D": "VT-KEO", "E": "Keo dán", "O": "Vật tư"}),
	})
	store.AfterWrite = func(spreadsheetID string, _ []sheets.ValueRange) {
		if spreadsheetID != recipesBook {
			return
		}
		store.Set(recipesBook, "Data_bom", 2, 10, "2,5") // K
		store.Set(recipesBook, "Data_bom", 2, 11, "bộ")  // L
		store.Set(recipesBook, "Data_bom", 3, 11, "10")  // L
		store.Set(recipesBook, "Data_bom", 3, 12, "m")   // M
	}
}

// executeRequest executes an HTTP request and returns the response recorder
func executeRequest(app *app, req *http.Request) *httptest.ResponseRecorder {
	return executeHandler(app.routes(), req)
}

func executeHandler(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// makeRequest creates and executes an HTTP request
func makeRequest(t *testing.T, app *app, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return executeRequest(app, req)
}

// parseJSONResponse parses a JSON response into a destination struct
func parseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()

	if err := json.NewDecoder(rr.Body).Decode(dest); err != nil {
		t.Fatalf("Failed to parse JSON response: %v. Body: %s", err, rr.Body.String())
	}
}

// checkResponseCode checks if the response has the expected status code
func checkResponseCode(t *testing.T, expected int, rr *httptest.ResponseRecorder) {
	t.Helper()

	if expected != rr.Code {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}
