// Package convert turns rendered document HTML into a stored PDF.
package convert

import (
	"context"
	"errors"
)

// ErrConversionFailed is returned when the converter could not produce a file.
var ErrConversionFailed = errors.New("convert: conversion failed")

// Request is one document to convert.
type Request struct {
	DocumentType string `json:"documentType"`
	OrderCode    string `json:"orderCode"`
	FileName     string `json:"fileName"`
	HTML         string `json:"html"`
}

// Result points at the stored file.
type Result struct {
	PathToFile string `json:"pathToFile"`
	FileName   string `json:"fileName"`
}

// Converter converts and stores a document.
type Converter interface {
	Convert(ctx context.Context, req Request) (*Result, error)
}

// Uploader stores converted bytes and returns a path or URL to them.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}
