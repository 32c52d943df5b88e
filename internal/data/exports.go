// File: internal/data/exports.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/validator"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ExportHistory records one document export and where its file ended up.
type ExportHistory struct {
	ID            int64     `json:"id"`
	DocumentType  string    `json:"document_type"`
	OrderCode     string    `json:"order_code"`
	SpreadsheetID string    `json:"spreadsheet_id"`
	Status        string    `json:"status"`
	PathToFile    string    `json:"path_to_file,omitempty"`
	FileName      string    `json:"file_name,omitempty"`
	Stale         bool      `json:"stale"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int32     `json:"-"`
}

// ExportModel wraps a sql.DB connection pool.
type ExportModel struct {
	DB *sql.DB
}

// ExportFilter narrows GetAll. Empty fields match everything.
type ExportFilter struct {
	Filter       Filter
	DocumentType string
	OrderCode    string
	Status       string
}

// ExportSortSafeList are the accepted values of the sort query parameter.
var ExportSortSafeList = []string{"id", "created_at", "order_code", "-id", "-created_at", "-order_code"}

// ValidateExportHistory checks an export before it is stored.
func ValidateExportHistory(v *validator.Validator, export *ExportHistory) {
	v.Check(export.DocumentType != "", "document_type", "must be provided")
	v.Check(export.OrderCode != "", "order_code", "must be provided")
	v.CheckOrderCode("order_code", export.OrderCode)
	v.Check(v.Permitted(export.Status, StatusPending, StatusCompleted, StatusFailed), "status", "must be pending, completed, or failed")
	if export.Status == StatusCompleted {
		v.Check(export.PathToFile != "", "path_to_file", "must be provided for a completed export")
	}
}

// Insert stores a new export and fills in its id, timestamps and version.
func (m ExportModel) Insert(ctx context.Context, export *ExportHistory) error {
	query := `
		INSERT INTO export_history (document_type, order_code, spreadsheet_id, status, path_to_file, file_name, stale, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at, version`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return m.DB.QueryRowContext(ctx, query,
		export.DocumentType,
		export.OrderCode,
		export.SpreadsheetID,
		export.Status,
		export.PathToFile,
		export.FileName,
		export.Stale,
		export.ErrorMessage,
	).Scan(&export.ID, &export.CreatedAt, &export.UpdatedAt, &export.Version)
}

// Update saves the outcome of an export. It fails with ErrEditConflict when
// the record changed since it was read.
func (m ExportModel) Update(ctx context.Context, export *ExportHistory) error {
	query := `
		UPDATE export_history
		SET status = $1, path_to_file = $2, file_name = $3, stale = $4, error_message = $5,
		    updated_at = NOW(), version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING updated_at, version`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query,
		export.Status,
		export.PathToFile,
		export.FileName,
		export.Stale,
		export.ErrorMessage,
		export.ID,
		export.Version,
	).Scan(&export.UpdatedAt, &export.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEditConflict
	}
	return err
}

// Get returns one export by id.
func (m ExportModel) Get(ctx context.Context, id int64) (*ExportHistory, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT id, document_type, order_code, spreadsheet_id, status, path_to_file, file_name,
		       stale, error_message, created_at, updated_at, version
		FROM export_history
		WHERE id = $1`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var export ExportHistory
	err := m.DB.QueryRowContext(ctx, query, id).Scan(export.scanTargets()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &export, nil
}

// GetAll lists exports matching filter, one page at a time.
func (m ExportModel) GetAll(ctx context.Context, filter ExportFilter) ([]*ExportHistory, MetaData, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), id, document_type, order_code, spreadsheet_id, status, path_to_file, file_name,
		       stale, error_message, created_at, updated_at, version
		FROM export_history
		WHERE (document_type = $1 OR $1 = '')
		  AND (order_code = $2 OR $2 = '')
		  AND (status = $3 OR $3 = '')
		ORDER BY %s %s, id ASC
		LIMIT $4 OFFSET $5`, filter.Filter.SortColumn(), filter.Filter.SortDirection())

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query,
		filter.DocumentType,
		filter.OrderCode,
		filter.Status,
		filter.Filter.Limit(),
		filter.Filter.Offset(),
	)
	if err != nil {
		return nil, MetaData{}, err
	}
	defer rows.Close()

	totalRecords := int64(0)
	exports := []*ExportHistory{}
	for rows.Next() {
		var export ExportHistory
		if err := rows.Scan(append([]any{&totalRecords}, export.scanTargets()...)...); err != nil {
			return nil, MetaData{}, err
		}
		exports = append(exports, &export)
	}
	if err := rows.Err(); err != nil {
		return nil, MetaData{}, err
	}

	return exports, CalculateMetaData(totalRecords, filter.Filter.Page, filter.Filter.PageSize), nil
}

func (e *ExportHistory) scanTargets() []any {
	return []any{
		&e.ID,
		&e.DocumentType,
		&e.OrderCode,
		&e.SpreadsheetID,
		&e.Status,
		&e.PathToFile,
		&e.FileName,
		&e.Stale,
		&e.ErrorMessage,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.Version,
	}
}
