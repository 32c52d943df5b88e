// Filename: /cmd/api/routes.go
// Description: connects the routes with an api

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *app) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.HandlerFunc(http.MethodGet, "/v1/sheets/info", app.requireAPIKey(app.sheetsInfoHandler))

	// BOM
	router.HandlerFunc(http.MethodGet, "/v1/bom", app.requireAPIKey(app.currentBOMHandler))
	router.HandlerFunc(http.MethodGet, "/v1/orders/:code/bom", app.requireAPIKey(app.showBOMHandler))
	router.HandlerFunc(http.MethodGet, "/v1/orders/:code/bom.xlsx", app.requireAPIKey(app.bomWorkbookHandler))
	router.HandlerFunc(http.MethodPost, "/v1/orders/:code/material-issue", app.requireAPIKey(app.materialIssueHandler))

	// Documents
	router.HandlerFunc(http.MethodGet, "/v1/documents", app.requireAPIKey(app.listDocumentsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/documents/:doc", app.requireAPIKey(app.previewDocumentHandler))
	router.HandlerFunc(http.MethodPost, "/v1/documents/:doc/export", app.requireAPIKey(app.exportDocumentHandler))

	// Export history
	router.HandlerFunc(http.MethodGet, "/v1/exports", app.requireAPIKey(app.listExportsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/exports/:id", app.requireAPIKey(app.showExportHandler))

	return app.recoverPanic(app.logRequest(app.rateLimit(app.enableCORS(router))))
}
