package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Function to start the HTTP server
func (app *app) serve() error {
	errorLog := app.logger.WriterLevel(logrus.ErrorLevel)
	defer errorLog.Close()

	// BOM runs poll the recipe sheet several times, so writes get a long timeout.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
		ErrorLog:     log.New(errorLog, "", 0),
	}

	shutdownError := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit
		app.logger.WithField("signal", s.String()).Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			shutdownError <- err
			return
		}

		// let in-flight exports finish writing their log cells
		app.logger.Info("waiting for background exports")
		app.wg.Wait()
		shutdownError <- nil
	}()

	app.logger.WithFields(logrus.Fields{"addr": srv.Addr, "env": app.config.env}).Info("starting server")

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownError; err != nil {
		return err
	}

	app.logger.WithField("addr", srv.Addr).Info("server stopped")
	return nil
}

// background runs fn outside the request and recovers its panics.
func (app *app) background(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.WithField("panic", fmt.Sprint(err)).Error("background task panicked")
			}
		}()
		fn()
	}()
}
