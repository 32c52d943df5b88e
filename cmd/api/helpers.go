package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/data"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/validator"
)

type envelope map[string]any

func (a *app) writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	jsResponse, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	jsResponse = append(jsResponse, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(jsResponse)
	return err
}

func (a *app) readJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	maxBytes := 64_000
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dest)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("the body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("the body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("the body contains the incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("the body contains the incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("the body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("the body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("the body must only contain a single JSON value")
	}
	return nil
}

// readOptionalJSON is readJSON for endpoints where the body may be omitted.
func (a *app) readOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return a.readJSON(w, r, dest)
}

// Helper function to read an id parameter from the url
func (a *app) readIDParam(r *http.Request) (int64, error) {
	params := httprouter.ParamsFromContext(r.Context())

	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id parameter")
	}
	return id, nil
}

// readStringParam returns a trimmed, unescaped path parameter.
func (a *app) readStringParam(r *http.Request, name string) string {
	return strings.TrimSpace(httprouter.ParamsFromContext(r.Context()).ByName(name))
}

func validateOrderCode(v *validator.Validator, code string) {
	v.CheckOrderCode("code", code)
}

// get single string query parameter
func (a *app) getSingleQueryParam(queryParameters url.Values, key string, defaultValue string) string {
	result := queryParameters.Get(key)
	if result == "" {
		return defaultValue
	}
	return result
}

// this method can cause a validation error if the parameter is not an integer
func (a *app) getSingleIntegerParam(queryParameters url.Values, key string, defaultValue int, v *validator.Validator) int {
	result := queryParameters.Get(key)
	if result == "" {
		return defaultValue
	}

	intResult, err := strconv.Atoi(result)
	if err != nil {
		v.AddErrors(key, "must be an integer value")
		return defaultValue
	}
	return intResult
}

func (a *app) getBoolParam(queryParameters url.Values, key string) bool {
	switch strings.ToLower(queryParameters.Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// readFilters reads page, page_size and sort from the query string.
func (a *app) readFilters(qs url.Values, defaultSort string, safeList []string, v *validator.Validator) data.Filter {
	return data.Filter{
		Page:         int64(a.getSingleIntegerParam(qs, "page", 1, v)),
		PageSize:     int64(a.getSingleIntegerParam(qs, "page_size", 20, v)),
		SortBy:       a.getSingleQueryParam(qs, "sort", defaultSort),
		SortSafeList: safeList,
	}
}

func safeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':', '"':
			return '_'
		}
		return r
	}, s)
}
