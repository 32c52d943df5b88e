// File: internal/data/testutils.go
// Description: Database helpers for integration tests

package data

import (
	"context"
	"database/sql"
	"fmt"
)

// TestUtils prepares a database for integration tests.
type TestUtils struct {
	DB *sql.DB
}

func NewTestUtils(db *sql.DB) *TestUtils {
	return &TestUtils{DB: db}
}

// CleanDatabase empties export_history and restarts its id sequence.
func (tu *TestUtils) CleanDatabase() error {
	if _, err := tu.DB.Exec("TRUNCATE TABLE export_history RESTART IDENTITY"); err != nil {
		return fmt.Errorf("failed to truncate export_history: %w", err)
	}
	return nil
}

// SeedExport stores an export with the given document, order and status and returns its id.
func (tu *TestUtils) SeedExport(documentType, orderCode, status string) (int64, error) {
	export := &ExportHistory{DocumentType: documentType, OrderCode: orderCode, Status: status}
	if status == StatusCompleted {
		export.PathToFile = "https://storage.googleapis.com/test/" + orderCode + ".pdf"
	}
	if err := (ExportModel{DB: tu.DB}).Insert(context.Background(), export); err != nil {
		return 0, fmt.Errorf("failed to seed export: %w", err)
	}
	return export.ID, nil
}
