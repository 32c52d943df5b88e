package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/documents"
)

// logs the error message along with the request method and URL
func (app *app) logError(r *http.Request, err error) {
	app.contextGetLogger(r).WithError(err).Error("request failed")
}

// Sends an error response in JSON format
func (app *app) errorResponseJSON(w http.ResponseWriter, r *http.Request, status int, message any) {
	errorData := envelope{"error": message}
	err := app.writeJSON(w, status, errorData, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

// error response for total server failure with a 500 status code
func (app *app) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	message := "the server encountered a problem and could not process your request"
	app.errorResponseJSON(w, r, http.StatusInternalServerError, message)
}

// send an error response if our client messes up with a 404
func (app *app) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	app.errorResponseJSON(w, r, http.StatusNotFound, message)
}

// send an error response if our client messes up with a 405
func (app *app) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	app.errorResponseJSON(w, r, http.StatusMethodNotAllowed, message)
}

// send an error response if our client messes up with a 400 (bad request)
func (app *app) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponseJSON(w, r, http.StatusBadRequest, err.Error())
}

// error response for failed validation checks with a 422 status code
func (app *app) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	app.errorResponseJSON(w, r, http.StatusUnprocessableEntity, errors)
}

// For rate limit exceeded errors with a 429 status code
func (app *app) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	message := "rate limit exceeded"
	app.errorResponseJSON(w, r, http.StatusTooManyRequests, message)
}

func (app *app) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	message := "invalid or missing API key"
	app.errorResponseJSON(w, r, http.StatusUnauthorized, message)
}

func (app *app) historyNotConfiguredResponse(w http.ResponseWriter, r *http.Request) {
	message := "export history is not configured on this server"
	app.errorResponseJSON(w, r, http.StatusNotFound, message)
}

// scratchBusyResponse is sent when another order holds the recipe sheet for longer than the lease wait.
func (app *app) scratchBusyResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "10")
	message := "the recipe sheet is busy with another order, please try again"
	app.errorResponseJSON(w, r, http.StatusConflict, message)
}

// sheetErrorResponse maps pipeline and document errors to responses.
func (app *app) sheetErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, bom.ErrScratchBusy):
		app.scratchBusyResponse(w, r)
	case errors.Is(err, bom.ErrScratchDirty):
		app.logError(r, err)
		app.errorResponseJSON(w, r, http.StatusServiceUnavailable, "the recipe sheet could not be restored, an operator has been notified")
	case errors.Is(err, documents.ErrNoOrderCode):
		app.errorResponseJSON(w, r, http.StatusNotFound, "no order is selected")
	case errors.Is(err, documents.ErrNotFound):
		app.errorResponseJSON(w, r, http.StatusNotFound, "the order has no data for this document")
	case errors.Is(err, context.DeadlineExceeded):
		app.logError(r, err)
		app.errorResponseJSON(w, r, http.StatusGatewayTimeout, "the spreadsheet did not answer in time")
	default:
		app.serverErrorResponse(w, r, err)
	}
}
