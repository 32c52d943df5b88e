// Package documents builds the view models of sheet-backed documents from
// declarative specs instead of one handler per document type.
package documents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

// Source selects where the lines of a document come from.
type Source string

const (
	// SourceTable reads header and lines straight from sheet tables.
	SourceTable Source = "table"
	// SourceBOM runs the bill-of-materials pipeline for the order.
	SourceBOM Source = "bom"
)

// Field maps a view field name to a sheet column.
type Field struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// Table is a sheet range whose rows belong to an order when any key column equals the order code.
type Table struct {
	Sheet      string   `json:"sheet"`
	LastColumn string   `json:"last_column"`
	KeyColumns []string `json:"key_columns"`
	Fields     []Field  `json:"fields"`
	HeaderRows int      `json:"header_rows"`
}

// Selector is where the current order code is picked in the workbook. Row 0
// means the last non-empty cell of Column.
type Selector struct {
	Sheet  string `json:"sheet"`
	Column string `json:"column"`
	Row    int    `json:"row,omitempty"`
}

// LogTarget is the column that receives the exported file path, on the selector row.
type LogTarget struct {
	Sheet  string `json:"sheet"`
	Column string `json:"column"`
}

// Spec declares one document type.
type Spec struct {
	Name          string    `json:"name"`
	Title         string    `json:"title"`
	Template      string    `json:"template"`
	SpreadsheetID string    `json:"-"`
	Source        Source    `json:"source"`
	Selector      Selector  `json:"selector"`
	Header        *Table    `json:"header,omitempty"`
	Lines         *Table    `json:"lines,omitempty"`
	Log           LogTarget `json:"log"`
	FileName      string    `json:"file_name"`
}

// FileNameFor returns the export file name of code.
func (s *Spec) FileNameFor(code string) string {
	name := s.FileName
	if name == "" {
		name = strings.ToUpper(s.Name) + "_%s.pdf"
	}
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, code)
	return fmt.Sprintf(name, safe)
}

// Validate checks column letters and required parts.
func (s *Spec) Validate() error {
	if s.Name == "" || s.Template == "" {
		return fmt.Errorf("document spec needs a name and a template")
	}
	if _, err := sheets.ColumnIndex(s.Selector.Column); err != nil {
		return fmt.Errorf("document %s: selector: %w", s.Name, err)
	}
	if s.Log.Sheet != "" {
		if _, err := sheets.ColumnIndex(s.Log.Column); err != nil {
			return fmt.Errorf("document %s: log: %w", s.Name, err)
		}
	}

	switch s.Source {
	case SourceBOM:
	case SourceTable:
		if s.Lines == nil {
			return fmt.Errorf("document %s: table documents need a lines table", s.Name)
		}
		for _, t := range []*Table{s.Header, s.Lines} {
			if t == nil {
				continue
			}
			if len(t.KeyColumns) == 0 {
				return fmt.Errorf("document %s: table %s has no key column", s.Name, t.Sheet)
			}
			cols := append([]string{t.LastColumn}, t.KeyColumns...)
			for _, f := range t.Fields {
				cols = append(cols, f.Column)
			}
			for _, c := range cols {
				if _, err := sheets.ColumnIndex(c); err != nil {
					return fmt.Errorf("document %s: table %s: %w", s.Name, t.Sheet, err)
				}
			}
		}
	default:
		return fmt.Errorf("document %s: unknown source %q", s.Name, s.Source)
	}
	return nil
}

// Registry holds the known document specs by name.
type Registry struct {
	specs map[string]*Spec
}

// NewRegistry validates and registers specs.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]*Spec)}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.specs[s.Name]; dup {
			return nil, fmt.Errorf("document %s registered twice", s.Name)
		}
		r.specs[s.Name] = s
	}
	return r, nil
}

// Get looks a spec up by name.
func (r *Registry) Get(name string) (*Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Names lists the registered documents alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry registers the delivery receipt and the material request of
// the production workbook.
func DefaultRegistry(spreadsheetID string) *Registry {
	r, err := NewRegistry(
		&Spec{
			Name:          "bbgn",
			Title:         "Biên bản giao nhận",
			Template:      "bbgn.tmpl",
			SpreadsheetID: spreadsheetID,
			Source:        SourceTable,
			Selector:      Selector{Sheet: "Xuat_BB_GN", Column: "B", Row: 2},
			Header: &Table{
				Sheet:      "Don_hang",
				LastColumn: "CG",
				KeyColumns: []string{"F"},
				HeaderRows: 1,
				Fields: []Field{
					{Name: "order_code", Column: "F"},
					{Name: "customer", Column: "I"},
					{Name: "contact", Column: "AK"},
					{Name: "phone", Column: "AL"},
					{Name: "delivery_date", Column: "AW"},
					{Name: "address", Column: "CF"},
				},
			},
			Lines: &Table{
				Sheet:      "Don_hang_ct",
				LastColumn: "AD",
				KeyColumns: []string{"B"},
				HeaderRows: 1,
				Fields: []Field{
					{Name: "name", Column: "J"},
					{Name: "total", Column: "V"},
					{Name: "quantity", Column: "W"},
					{Name: "unit", Column: "X"},
					{Name: "note", Column: "Y"},
				},
			},
			Log:      LogTarget{Sheet: "Xuat_BB_GN", Column: "D"},
			FileName: "BBGN_%s.pdf",
		},
		&Spec{
			Name:          "ycvt",
			Title:         "Yêu cầu vật tư",
			Template:      "ycvt.tmpl",
			SpreadsheetID: spreadsheetID,
			Source:        SourceBOM,
			Selector:      Selector{Sheet: "File_BOM_ct", Column: "B"},
			Log:           LogTarget{Sheet: "File_BOM_ct", Column: "D"},
			FileName:      "YCVT_%s.pdf",
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
