// Filename: /internal/data/data.go
// Purpose: Export history persistence
package data

import "database/sql"

// Models wraps all data models for use with db
type Models struct {
	Exports ExportModel
}

// NewModels initializes the Models struct with a given database connection
func NewModels(db *sql.DB) Models {
	return Models{
		Exports: ExportModel{DB: db},
	}
}
