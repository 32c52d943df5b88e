package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/convert"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/data"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/documents"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/metrics"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/validator"
)

const exportTimeout = 3 * time.Minute

func (app *app) listDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs := []*documents.Spec{}
	for _, name := range app.registry.Names() {
		spec, _ := app.registry.Get(name)
		docs = append(docs, spec)
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"documents": docs}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// buildView looks up the document in the path and builds it for code. It
// writes the error response itself and returns nil in that case.
func (app *app) buildView(w http.ResponseWriter, r *http.Request, code string) (*documents.Spec, *documents.View) {
	spec, ok := app.registry.Get(app.readStringParam(r, "doc"))
	if !ok {
		app.notFoundResponse(w, r)
		return nil, nil
	}

	v := validator.New()
	validateOrderCode(v, code)
	if !v.IsEmpty() {
		app.failedValidationResponse(w, r, v.Errors)
		return nil, nil
	}

	view, err := app.builder.Build(r.Context(), spec, code)
	if err != nil {
		app.sheetErrorResponse(w, r, err)
		return nil, nil
	}
	return spec, view
}

// previewDocumentHandler renders the document as printable HTML.
func (app *app) previewDocumentHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	spec, view := app.buildView(w, r, app.getSingleQueryParam(qs, "code", ""))
	if view == nil {
		return
	}
	view.AutoPrint = app.getBoolParam(qs, "autoprint")

	html, err := app.renderer.RenderString(spec.Template, view)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(html)); err != nil {
		app.logError(r, err)
	}
}

// exportDocumentHandler renders the document now and converts it in the
// background. The stored file's path ends up in the document's log cell.
func (app *app) exportDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"code"`
	}
	if err := app.readOptionalJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if input.Code == "" {
		input.Code = r.URL.Query().Get("code")
	}

	spec, view := app.buildView(w, r, input.Code)
	if view == nil {
		return
	}

	html, err := app.renderer.RenderString(spec.Template, view)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	export := &data.ExportHistory{
		DocumentType:  spec.Name,
		OrderCode:     view.Code,
		SpreadsheetID: spec.SpreadsheetID,
		Status:        data.StatusPending,
		FileName:      spec.FileNameFor(view.Code),
		Stale:         view.Stale,
	}
	if app.models != nil {
		if err := app.models.Exports.Insert(r.Context(), export); err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
	}

	// the background task mutates export; respond with a copy
	accepted := *export
	req := convert.Request{DocumentType: spec.Name, OrderCode: view.Code, FileName: export.FileName, HTML: html}
	logger := app.contextGetLogger(r).WithFields(logrus.Fields{"document": spec.Name, "order_code": view.Code})
	app.background(func() {
		app.runExport(spec, view, req, export, logger)
	})

	env := envelope{"document": spec.Name, "order_code": view.Code, "file_name": export.FileName, "stale": view.Stale}
	if app.models != nil {
		env["export"] = &accepted
	}
	if err := app.writeJSON(w, http.StatusAccepted, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// runExport converts the rendered document, writes the file path into the log
// cell and records the outcome.
func (app *app) runExport(spec *documents.Spec, view *documents.View, req convert.Request, export *data.ExportHistory, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	res, err := app.converter.Convert(ctx, req)
	if err == nil {
		export.PathToFile, export.FileName = res.PathToFile, res.FileName
		err = app.builder.WriteLog(ctx, spec, view, res.PathToFile)
	}

	if err != nil {
		export.Status = data.StatusFailed
		export.ErrorMessage = err.Error()
		metrics.DocumentExports.WithLabelValues(spec.Name, "failed").Inc()
		logger.WithError(err).Error("document export failed")
		app.notifyExportFailed(ctx, export)
	} else {
		export.Status = data.StatusCompleted
		metrics.DocumentExports.WithLabelValues(spec.Name, "completed").Inc()
		logger.WithField("path", export.PathToFile).Info("document exported")
	}

	if app.models != nil {
		if err := app.models.Exports.Update(ctx, export); err != nil {
			logger.WithError(err).Error("failed to record export outcome")
		}
	}
}
