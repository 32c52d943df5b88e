// File: internal/sheets/service.go
package sheets

import (
	"context"
	"fmt"
	"time"
)

// Service provides high-level operations on top of a RowStore.
type Service struct {
	client *Client
	store  RowStore

	stockSpreadsheetID string
	stockSheet         string
}

// ServiceConfig selects where stock-issue rows are appended.
type ServiceConfig struct {
	StockSpreadsheetID string
	StockSheet         string
}

// NewService creates a new sheets service. client may be nil when only the
// RowStore operations are needed.
func NewService(client *Client, store RowStore, cfg ServiceConfig) *Service {
	if cfg.StockSheet == "" {
		cfg.StockSheet = "xuat_kho_VT"
	}
	return &Service{
		client:             client,
		store:              store,
		stockSpreadsheetID: cfg.StockSpreadsheetID,
		stockSheet:         cfg.StockSheet,
	}
}

// AppendStockIssue appends one log row per line to the stock-issue sheet and
// returns the number of rows written.
func (s *Service) AppendStockIssue(ctx context.Context, orderCode string, date time.Time, lines []IssueLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	rows := FormatStockIssue(orderCode, date, lines, nil)
	if _, err := s.store.Append(ctx, s.stockSpreadsheetID, Columns(s.stockSheet, 0, StockIssueColumns-1, 1), rows); err != nil {
		return 0, fmt.Errorf("failed to write stock issue log: %w", err)
	}
	return len(rows), nil
}

// GetSpreadsheetInfo returns information about the configured spreadsheet
func (s *Service) GetSpreadsheetInfo(ctx context.Context) (map[string]interface{}, error) {
	if s.client == nil {
		return nil, fmt.Errorf("sheets client not configured")
	}
	spreadsheet, err := s.client.GetSpreadsheet(ctx, "")
	if err != nil {
		return nil, err
	}

	sheets := make([]string, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		sheets = append(sheets, sheet.Properties.Title)
	}

	info := map[string]interface{}{
		"spreadsheet_id":    spreadsheet.SpreadsheetId,
		"spreadsheet_title": spreadsheet.Properties.Title,
		"sheets":            sheets,
		"sheet_count":       len(sheets),
	}

	return info, nil
}

// TestConnection tests the connection to Google Sheets
func (s *Service) TestConnection(ctx context.Context) error {
	if s.client == nil {
		_, err := s.store.ReadRange(ctx, s.stockSpreadsheetID, Cell(s.stockSheet, 0, 1))
		return err
	}
	_, err := s.client.GetSpreadsheet(ctx, "")
	return err
}
