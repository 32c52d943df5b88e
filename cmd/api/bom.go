package main

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/render"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/validator"
)

// runBOM validates code and expands it. It writes the error response itself
// and returns nil in that case.
func (app *app) runBOM(w http.ResponseWriter, r *http.Request, code string) *bom.Result {
	v := validator.New()
	validateOrderCode(v, code)
	if !v.IsEmpty() {
		app.failedValidationResponse(w, r, v.Errors)
		return nil
	}

	res, err := app.pipeline.Run(r.Context(), code)
	if err != nil {
		app.sheetErrorResponse(w, r, err)
		return nil
	}
	return res
}

func (app *app) writeBOM(w http.ResponseWriter, r *http.Request, res *bom.Result) {
	env := envelope{
		"order_code":          res.OrderCode,
		"order":               res.Order,
		"line_items":          res.LineItems,
		"summary_by_product":  res.SummaryByProduct,
		"summary_by_material": res.SummaryByMaterial,
		"stale":               res.Stale,
		"generated_at":        res.GeneratedAt,
	}
	if res.Stale {
		env["warning"] = "the recipe sheet had not finished recalculating; quantities may be incomplete"
	}
	if err := app.writeJSON(w, http.StatusOK, env, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBOMHandler expands the order named in the path.
func (app *app) showBOMHandler(w http.ResponseWriter, r *http.Request) {
	res := app.runBOM(w, r, app.readStringParam(r, "code"))
	if res == nil {
		return
	}
	app.writeBOM(w, r, res)
}

// currentBOMHandler expands the order last entered in the selector column.
// An empty selector is not an error: the sheet simply has no order yet.
func (app *app) currentBOMHandler(w http.ResponseWriter, r *http.Request) {
	code, _, err := app.pipeline.ResolveOrderCode(r.Context())
	if err != nil {
		app.sheetErrorResponse(w, r, err)
		return
	}
	if code == "" {
		err := app.writeJSON(w, http.StatusOK, envelope{
			"order_code":          "",
			"line_items":          []any{},
			"summary_by_product":  []any{},
			"summary_by_material": []any{},
			"stale":               false,
			"message":             "no order selected yet",
		}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	res := app.runBOM(w, r, code)
	if res == nil {
		return
	}
	app.writeBOM(w, r, res)
}

// bomWorkbookHandler returns the expanded order as an Excel workbook.
func (app *app) bomWorkbookHandler(w http.ResponseWriter, r *http.Request) {
	res := app.runBOM(w, r, app.readStringParam(r, "code"))
	if res == nil {
		return
	}

	buf := new(bytes.Buffer)
	if err := render.WriteBOMWorkbook(buf, res); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="BOM_%s.xlsx"`, safeFileName(res.OrderCode)))
	if res.Stale {
		w.Header().Set("X-BOM-Stale", "true")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		app.logError(r, err)
	}
}

// materialIssueHandler expands the order and appends its totals to the stock
// issue log. Stale results are refused unless force is set.
func (app *app) materialIssueHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Date  string `json:"date"`
		Force bool   `json:"force"`
	}
	if err := app.readOptionalJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	date := time.Now()
	if input.Date != "" {
		parsed, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			app.failedValidationResponse(w, r, map[string]string{"date": "must be a date in YYYY-MM-DD format"})
			return
		}
		date = parsed
	}

	res := app.runBOM(w, r, app.readStringParam(r, "code"))
	if res == nil {
		return
	}
	if res.Empty() {
		app.errorResponseJSON(w, r, http.StatusNotFound, "the order has no materials to issue")
		return
	}
	if res.Stale && !input.Force {
		app.errorResponseJSON(w, r, http.StatusConflict, "the recipe sheet had not finished recalculating; retry or send force=true")
		return
	}

	n, err := app.sheets.AppendStockIssue(r.Context(), res.OrderCode, date, res.IssueLines())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.contextGetLogger(r).WithField("order_code", res.OrderCode).WithField("rows", n).Info("stock issue logged")
	err = app.writeJSON(w, http.StatusCreated, envelope{
		"order_code": res.OrderCode,
		"rows":       n,
		"stale":      res.Stale,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
