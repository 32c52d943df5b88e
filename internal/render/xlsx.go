package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
)

const (
	summarySheet = "Tong_hop"
	linesSheet   = "Hang_muc"
)

// WriteBOMWorkbook writes the aggregate of res as an xlsx workbook: one sheet
// with the product and material totals, one with the line items.
func WriteBOMWorkbook(w io.Writer, res *bom.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(linesSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
	})
	if err != nil {
		return err
	}

	headings := []any{"STT", "Loại", "Mã", "Diễn giải", "Số lượng", "ĐVT", "Số dòng"}
	if err := f.SetSheetRow(summarySheet, "A1", &headings); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "G1", bold); err != nil {
		return err
	}

	rowNo := 2
	for _, group := range [][]*bom.AggregateEntry{res.SummaryByProduct, res.SummaryByMaterial} {
		for _, e := range group {
			label := "Vật tư"
			if e.Kind == bom.KindProduct {
				label = "Sản phẩm"
			}
			row := []any{rowNo - 1, label, e.Code, e.Description, e.Quantity.InexactFloat64(), e.Unit, e.Sources}
			if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", rowNo), &row); err != nil {
				return err
			}
			rowNo++
		}
	}

	info := []any{"Đơn hàng", res.OrderCode, "Ngày lập", sheets.FormatDateVN(res.GeneratedAt)}
	if res.Stale {
		info = append(info, "Chưa tính xong")
	}
	if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", rowNo+1), &info); err != nil {
		return err
	}

	lineHeadings := []any{"STT", "Mã hạng mục", "Dòng"}
	if err := f.SetSheetRow(linesSheet, "A1", &lineHeadings); err != nil {
		return err
	}
	if err := f.SetCellStyle(linesSheet, "A1", "C1", bold); err != nil {
		return err
	}
	for i, item := range res.LineItems {
		row := []any{item.Index, item.LineCode, item.Row}
		if err := f.SetSheetRow(linesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(summarySheet, "B", "D", 22); err != nil {
		return err
	}
	return f.Write(w)
}
