// Package render turns document views into HTML and spreadsheets.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/documents"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return sheets.FormatDateVN(t) },
	"kindLabel": func(kind string) string {
		switch bom.Kind(kind) {
		case bom.KindProduct:
			return "Sản phẩm"
		case bom.KindMaterial:
			return "Vật tư"
		}
		return kind
	},
}

// Renderer executes the embedded document templates.
type Renderer struct {
	templates *template.Template
	logo      template.URL
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	r := &Renderer{}
	tmpl, err := template.New("documents").
		Funcs(funcs).
		Funcs(template.FuncMap{"logo": func() template.URL { return r.logo }}).
		ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.templates = tmpl
	return r, nil
}

// Render writes the HTML of view using the named template.
func (r *Renderer) Render(w io.Writer, name string, view *documents.View) error {
	if r.templates.Lookup(name) == nil {
		return fmt.Errorf("template %q not found", name)
	}
	return r.templates.ExecuteTemplate(w, name, view)
}

// RenderString renders into a string; the template is fully executed before anything is returned.
func (r *Renderer) RenderString(name string, view *documents.View) (string, error) {
	buf := new(bytes.Buffer)
	if err := r.Render(buf, name, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
