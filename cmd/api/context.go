// File: cmd/api/context.go
package main

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

type contextKey string

const requestLoggerKey = contextKey("logger")

// contextSetLogger attaches a request-scoped logger to the request.
func (app *app) contextSetLogger(r *http.Request, logger logrus.FieldLogger) *http.Request {
	ctx := context.WithValue(r.Context(), requestLoggerKey, logger)
	return r.WithContext(ctx)
}

// contextGetLogger returns the request logger, or the app logger for requests
// that did not pass through logRequest.
func (app *app) contextGetLogger(r *http.Request) logrus.FieldLogger {
	logger, ok := r.Context().Value(requestLoggerKey).(logrus.FieldLogger)
	if !ok {
		return app.logger
	}
	return logger
}
