// Package bom expands an order into its bill of materials by injecting line
// item measurements into a shared recipe spreadsheet, reading back the
// recalculated rows and aggregating them per product and material code.
package bom

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

// Column is a zero-based spreadsheet column.
type Column int

// Col converts A1 letters into a Column. It panics on invalid input and is
// meant for literal schema definitions.
func Col(letters string) Column {
	idx, err := sheets.ColumnIndex(letters)
	if err != nil {
		panic(err)
	}
	return Column(idx)
}

// Letter returns the A1 letters of the column.
func (c Column) Letter() string {
	return sheets.ColumnName(int(c))
}

// Of returns the trimmed text of this column in row.
func (c Column) Of(row []any) string {
	return sheets.Value(row, int(c))
}

// DetailSchema locates line items in the order-detail sheet.
type DetailSchema struct {
	Sheet        string
	OrderCode    Column
	LineCode     Column
	Measurements []Column
	LastColumn   Column
}

// RecipeSchema describes the shared recipe (BOM) sheet.
type RecipeSchema struct {
	Sheet       string
	Owner       Column
	Match       Column
	ScratchFrom Column
	ScratchTo   Column
	Kind        Column
	Description Column
	LastColumn  Column

	ProductCode     Column
	ProductQuantity Column
	ProductUnit     Column

	MaterialCode     Column
	MaterialQuantity Column
	MaterialUnit     Column

	// Ready lists the formula output columns whose presence means the sheet
	// has finished recalculating.
	Ready []Column

	ProductLabels  []string
	MaterialLabels []string
	// HeaderLabels are codes that only appear on section header rows.
	HeaderLabels []string
}

// OrderSchema describes the order header sheet.
type OrderSchema struct {
	Sheet        string
	Codes        []Column
	Customer     Column
	Address      Column
	Contact      Column
	Phone        Column
	DeliveryDate Column
	LastColumn   Column
}

// SelectorSchema is the column whose last non-empty cell names the current order.
type SelectorSchema struct {
	Sheet  string
	Column Column
}

// Schema names every column the pipeline touches.
type Schema struct {
	Detail     DetailSchema
	Recipe     RecipeSchema
	Order      OrderSchema
	Selector   SelectorSchema
	HeaderRows int
}

// DefaultSchema returns the layout of the production workbooks.
func DefaultSchema() Schema {
	return Schema{
		Detail: DetailSchema{
			Sheet:     "Don_hang_PVC_ct",
			OrderCode: Col("B"),
			LineCode:  Col("H"),
			Measurements: []Column{
				Col("Q"), Col("R"), Col("S"), Col("T"), Col("U"),
				Col("V"), Col("W"), Col("X"), Col("AC"),
			},
			LastColumn: Col("AE"),
		},
		Recipe: RecipeSchema{
			Sheet:       "Data_bom",
			Owner:       Col("A"),
			Match:       Col("C"),
			ScratchFrom: Col("F"),
			ScratchTo:   Col("N"),
			Kind:        Col("O"),
			Description: Col("E"),
			LastColumn:  Col("O"),

			ProductCode:     Col("C"),
			ProductQuantity: Col("K"),
			ProductUnit:     Col("L"),

			MaterialCode:     Col("D"),
			MaterialQuantity: Col("L"),
			MaterialUnit:     Col("M"),

			Ready: []Column{Col("B"), Col("K"), Col("L")},

			ProductLabels:  []string{"Sản phẩm", "Product"},
			MaterialLabels: []string{"Vật tư", "Material"},
			HeaderLabels:   []string{"Mã SP", "Mã vật tư sản xuất", "Mã vật tư xuất kèm"},
		},
		Order: OrderSchema{
			Sheet:        "Don_hang",
			Codes:        []Column{Col("F"), Col("G")},
			Customer:     Col("I"),
			Contact:      Col("AK"),
			Phone:        Col("AL"),
			DeliveryDate: Col("AW"),
			Address:      Col("CF"),
			LastColumn:   Col("CF"),
		},
		Selector: SelectorSchema{
			Sheet:  "File_BOM_ct",
			Column: Col("B"),
		},
		HeaderRows: 1,
	}
}

// ScratchWidth is the number of scratch columns in a recipe row.
func (s RecipeSchema) ScratchWidth() int {
	return int(s.ScratchTo-s.ScratchFrom) + 1
}

// ScratchRange addresses the scratch span of a 1-based recipe row.
func (s RecipeSchema) ScratchRange(row int) string {
	return sheets.Span(s.Sheet, int(s.ScratchFrom), int(s.ScratchTo), row)
}

// KindOf classifies a recipe row by its kind tag.
func (s RecipeSchema) KindOf(row []any) Kind {
	tag := s.Kind.Of(row)
	switch {
	case tag == "":
		return KindUnknown
	case containsFold(s.ProductLabels, tag):
		return KindProduct
	case containsFold(s.MaterialLabels, tag):
		return KindMaterial
	default:
		return KindUnknown
	}
}

func containsFold(labels []string, v string) bool {
	return slices.ContainsFunc(labels, func(l string) bool { return strings.EqualFold(l, v) })
}

// Validate reports schema mistakes that would corrupt the recipe sheet.
func (s Schema) Validate() error {
	if s.Detail.Sheet == "" || s.Recipe.Sheet == "" {
		return fmt.Errorf("%w: sheet names are required", ErrInvalidSchema)
	}
	if s.Recipe.ScratchTo < s.Recipe.ScratchFrom {
		return fmt.Errorf("%w: scratch span ends before it starts", ErrInvalidSchema)
	}
	if got, want := len(s.Detail.Measurements), s.Recipe.ScratchWidth(); got != want {
		return fmt.Errorf("%w: %d measurement columns for %d scratch columns", ErrInvalidSchema, got, want)
	}
	if len(s.Recipe.Ready) == 0 {
		return fmt.Errorf("%w: at least one ready column is required", ErrInvalidSchema)
	}
	for _, c := range []Column{s.Recipe.Owner, s.Recipe.Match, s.Recipe.Kind, s.Recipe.ProductQuantity, s.Recipe.MaterialQuantity} {
		if c > s.Recipe.LastColumn {
			return fmt.Errorf("%w: column %s is outside the recipe read range", ErrInvalidSchema, c.Letter())
		}
	}
	for _, c := range append([]Column{s.Detail.OrderCode, s.Detail.LineCode}, s.Detail.Measurements...) {
		if c > s.Detail.LastColumn {
			return fmt.Errorf("%w: column %s is outside the detail read range", ErrInvalidSchema, c.Letter())
		}
	}
	if s.HeaderRows < 0 {
		return fmt.Errorf("%w: negative header rows", ErrInvalidSchema)
	}
	return nil
}
