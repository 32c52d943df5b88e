// File: cmd/api/exports.go
// Description: export history handlers

package main

import (
	"errors"
	"net/http"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/data"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/validator"
)

// listExportsHandler lists export history with optional filtering and pagination.
func (app *app) listExportsHandler(w http.ResponseWriter, r *http.Request) {
	if app.models == nil {
		app.historyNotConfiguredResponse(w, r)
		return
	}

	qs := r.URL.Query()
	v := validator.New()

	filter := data.ExportFilter{
		Filter:       app.readFilters(qs, "-created_at", data.ExportSortSafeList, v),
		DocumentType: app.getSingleQueryParam(qs, "document_type", ""),
		OrderCode:    app.getSingleQueryParam(qs, "order_code", ""),
		Status:       app.getSingleQueryParam(qs, "status", ""),
	}
	data.ValidateFilters(v, filter.Filter)
	if filter.Status != "" {
		v.Check(v.Permitted(filter.Status, data.StatusPending, data.StatusCompleted, data.StatusFailed), "status", "must be pending, completed, or failed")
	}
	if !v.IsEmpty() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	exports, metadata, err := app.models.Exports.GetAll(r.Context(), filter)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"exports": exports, "metadata": metadata}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *app) showExportHandler(w http.ResponseWriter, r *http.Request) {
	if app.models == nil {
		app.historyNotConfiguredResponse(w, r)
		return
	}

	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	export, err := app.models.Exports.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, envelope{"export": export}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
