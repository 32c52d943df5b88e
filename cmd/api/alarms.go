package main

import (
	"context"
	"time"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/data"
)

// ScratchDirty mails the operator when the recipe sheet could not be restored.
// The pipeline has already logged and counted the failure.
func (app *app) ScratchDirty(_ context.Context, spreadsheetID string, ranges []string, err error) {
	if app.mailer == nil || app.config.alarmRecipient == "" {
		return
	}

	payload := map[string]any{
		"SpreadsheetID": spreadsheetID,
		"Ranges":        ranges,
		"Error":         err.Error(),
		"Time":          time.Now(),
	}
	app.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := app.mailer.Send(ctx, app.config.alarmRecipient, "scratch_alarm.tmpl", payload); err != nil {
			app.logger.WithError(err).Error("failed to send scratch alarm")
		}
	})
}

// notifyExportFailed mails the operator about a failed export. It runs inside
// the export's background task, so it sends synchronously.
func (app *app) notifyExportFailed(ctx context.Context, export *data.ExportHistory) {
	if app.mailer == nil || app.config.alarmRecipient == "" {
		return
	}

	payload := map[string]any{
		"ExportID":  export.ID,
		"Document":  export.DocumentType,
		"OrderCode": export.OrderCode,
		"Error":     export.ErrorMessage,
	}
	if err := app.mailer.Send(ctx, app.config.alarmRecipient, "export_failed.tmpl", payload); err != nil {
		app.logger.WithError(err).Error("failed to send export failure notice")
	}
}
