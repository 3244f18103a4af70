// Package xlsxexport renders a report as the customs workbook.
package xlsxexport

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"aforo/internal/report"
)

const (
	SheetAforo       = "AFORO"
	SheetDeva        = "LISTADO DEVA"
	SheetTranslation = "TRADUCCION"
	SheetSummary     = "RESUMEN FACTURA"
	SheetCatalog     = "CATALOGO"
	SheetWarnings    = "ADVERTENCIAS"
)

const (
	noBrand          = "S/M"
	noCode           = "S/C"
	moneyFormat      = `"$"#,##0.00`
	headerFill       = "4F81BD"
	defaultSheetName = "Sheet1"
)

// Sheets lists the workbook tabs in order.
var Sheets = []string{SheetAforo, SheetDeva, SheetTranslation, SheetSummary, SheetCatalog, SheetWarnings}

type workbook struct {
	f      *excelize.File
	header int
	money  int
}

// Write renders r as an xlsx workbook to w.
func Write(w io.Writer, r *report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	wb := &workbook{f: f}
	if err := wb.init(); err != nil {
		return err
	}

	steps := []func(*report.Report) error{
		wb.writeAforo,
		wb.writeDeva,
		wb.writeTranslation,
		wb.writeSummary,
		wb.writeCatalog,
		wb.writeWarnings,
	}
	for _, step := range steps {
		if err := step(r); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func (wb *workbook) init() error {
	if err := wb.f.SetSheetName(defaultSheetName, Sheets[0]); err != nil {
		return fmt.Errorf("xlsx rename sheet: %w", err)
	}
	for _, name := range Sheets[1:] {
		if _, err := wb.f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx new sheet %s: %w", name, err)
		}
	}
	wb.f.SetActiveSheet(0)

	var err error
	wb.header, err = wb.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("xlsx header style: %w", err)
	}
	format := moneyFormat
	wb.money, err = wb.f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return fmt.Errorf("xlsx money style: %w", err)
	}
	return nil
}

func (wb *workbook) writeHeader(sheet string, headers []string) error {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := wb.f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("xlsx %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return wb.f.SetCellStyle(sheet, "A1", last, wb.header)
}

func (wb *workbook) writeRow(sheet string, rowNum int, values []any) error {
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)
	if err := wb.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

// moneyColumns applies the currency format to columns [from, to] of rows 2..lastRow.
func (wb *workbook) moneyColumns(sheet string, from, to, lastRow int) error {
	if lastRow < 2 {
		return nil
	}
	start, _ := excelize.CoordinatesToCellName(from, 2)
	end, _ := excelize.CoordinatesToCellName(to, lastRow)
	return wb.f.SetCellStyle(sheet, start, end, wb.money)
}

func (wb *workbook) widths(sheet string, widths map[string]float64) {
	for col, width := range widths {
		_ = wb.f.SetColWidth(sheet, col, col, width)
	}
}

func (wb *workbook) writeAforo(r *report.Report) error {
	headers := []string{"BL", "Item", "Bultos", "Contenido", "Marca", "Fob", "Flete", "Seg", "CIF", "Peso", "Posicion Arancelaria"}
	if err := wb.writeHeader(SheetAforo, headers); err != nil {
		return err
	}
	rowNum := 2
	for i := range r.Shipments {
		s := &r.Shipments[i]
		for _, row := range s.Rows {
			values := []any{
				s.BLNumber, row.Item, row.Quantity, row.Description, noBrand,
				row.Value, row.FreightShare, row.InsuranceShare, row.CIFContribution,
				row.Weight, row.TariffCode,
			}
			if err := wb.writeRow(SheetAforo, rowNum, values); err != nil {
				return err
			}
			rowNum++
		}
	}
	wb.widths(SheetAforo, map[string]float64{"A": 16, "B": 6, "C": 10, "D": 50, "E": 10, "F": 14, "G": 14, "H": 14, "I": 14, "J": 10, "K": 22})
	return wb.moneyColumns(SheetAforo, 6, 9, rowNum-1)
}

func (wb *workbook) writeDeva(r *report.Report) error {
	headers := []string{"CODIGO DE BARRAS", "DESCRIPCION COMERCIAL", "MARCA", "MODELO/ESTILO", "UNIDADES", "PRECIO UNITARIO", "TOTAL"}
	if err := wb.writeHeader(SheetDeva, headers); err != nil {
		return err
	}
	rowNum := 2
	for i := range r.Shipments {
		for _, row := range r.Shipments[i].Rows {
			code := row.PartNumber
			if code == "" {
				code = noCode
			}
			values := []any{code, row.Description, noBrand, noBrand, row.Quantity, row.UnitPrice, row.Value}
			if err := wb.writeRow(SheetDeva, rowNum, values); err != nil {
				return err
			}
			rowNum++
		}
	}
	wb.widths(SheetDeva, map[string]float64{"A": 20, "B": 50, "C": 12, "D": 15, "E": 10, "F": 15, "G": 15})
	return wb.moneyColumns(SheetDeva, 6, 7, rowNum-1)
}

func (wb *workbook) writeTranslation(r *report.Report) error {
	if err := wb.writeHeader(SheetTranslation, []string{"DESCRIPCION INGLES", "DESCRIPCION ESPAÑOL", "POSICION ARANCELARIA", "SUGERENCIA POR CONFIRMAR"}); err != nil {
		return err
	}
	rowNum := 2
	for i := range r.Shipments {
		for _, row := range r.Shipments[i].Rows {
			values := []any{row.OriginalDescription, row.Description, row.TariffCode}
			if row.Suggestion != "" {
				values = append(values, fmt.Sprintf("%s (%s)", row.Suggestion, row.SuggestedTariffCode))
			}
			if err := wb.writeRow(SheetTranslation, rowNum, values); err != nil {
				return err
			}
			rowNum++
		}
	}
	wb.widths(SheetTranslation, map[string]float64{"A": 60, "B": 60, "C": 22, "D": 50})
	return nil
}

func (wb *workbook) writeSummary(r *report.Report) error {
	headers := []string{"BL", "FACTURA No.", "FECHA", "PROVEEDOR", "BULTOS", "PESO", "VALOR FACTURA", "FLETE", "SEGURO", "VALOR CIF", "MONEDA"}
	if err := wb.writeHeader(SheetSummary, headers); err != nil {
		return err
	}
	rowNum := 2
	for i := range r.Shipments {
		s := &r.Shipments[i]
		values := []any{
			s.BLNumber, strings.Join(s.InvoiceNumbers, ", "), s.InvoiceDate, s.Exporter.Name,
			s.PackageCount, s.DeclaredGrossWeight, s.FOBValue, s.Freight, s.Insurance, s.CIF, s.Currency,
		}
		if err := wb.writeRow(SheetSummary, rowNum, values); err != nil {
			return err
		}
		rowNum++
	}
	wb.widths(SheetSummary, map[string]float64{"A": 16, "B": 24, "C": 12, "D": 30, "E": 8, "F": 10, "G": 16, "H": 14, "I": 14, "J": 16, "K": 8})
	return wb.moneyColumns(SheetSummary, 7, 10, rowNum-1)
}

func (wb *workbook) writeCatalog(r *report.Report) error {
	if err := wb.writeHeader(SheetCatalog, []string{"Descripción Producto (Español)", "Posicion_Arancelaria"}); err != nil {
		return err
	}
	for i, e := range r.Catalog {
		if err := wb.writeRow(SheetCatalog, i+2, []any{e.Term, e.TariffCode}); err != nil {
			return err
		}
	}
	wb.widths(SheetCatalog, map[string]float64{"A": 60, "B": 30})
	return nil
}

func (wb *workbook) writeWarnings(r *report.Report) error {
	if err := wb.writeHeader(SheetWarnings, []string{"TIPO", "BL", "DOCUMENTO", "MENSAJE"}); err != nil {
		return err
	}
	for i, w := range r.Warnings {
		doc := ""
		if w.DocumentID != uuid.Nil {
			doc = w.DocumentID.String()
		}
		if err := wb.writeRow(SheetWarnings, i+2, []any{string(w.Kind), w.BLNumber, doc, w.Message}); err != nil {
			return err
		}
	}
	wb.widths(SheetWarnings, map[string]float64{"A": 30, "B": 16, "C": 38, "D": 80})
	return nil
}
