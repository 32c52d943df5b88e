package main

import (
	"context"
	"net/http"
	"time"
)

func (app *app) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sheetsStatus := "available"
	if err := app.sheets.TestConnection(ctx); err != nil {
		app.contextGetLogger(r).WithError(err).Warn("sheets connectivity check failed")
		sheetsStatus = "unavailable"
	}

	env := envelope{
		"status": "available",
		"system_info": map[string]string{
			"environment": app.config.env,
			"version":     version,
			"sheets":      sheetsStatus,
		},
	}
	if err := app.writeJSON(w, http.StatusOK, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// sheetsInfoHandler returns the title and tabs of the orders spreadsheet.
func (app *app) sheetsInfoHandler(w http.ResponseWriter, r *http.Request) {
	info, err := app.sheets.GetSpreadsheetInfo(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"sheets_info": info}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
