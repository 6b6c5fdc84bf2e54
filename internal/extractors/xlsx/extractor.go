// Package xlsx extracts text and formulation tables from OOXML
// spreadsheet workbooks.
package xlsx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Default keyword sets for recognising formulation sheets and their
// header rows. The terms are the Japanese recipe-table conventions used
// in the filing convention: 配合 (formulation), 検討 (trial study),
// 試作 (prototype); 原料 (raw material), 材料 (ingredient).
var (
	DefaultFormulationMarkers = []string{"配合", "検討", "試作"}
	DefaultHeaderMarkers      = []string{"原料", "材料", "配合"}
)

// cellSeparator joins non-empty cell values of one row.
const cellSeparator = " | "

// Config tunes formulation-table recognition.
type Config struct {
	// FormulationMarkers mark a sheet (by name substring) as a
	// formulation sheet to be scanned for ingredient/ratio pairs.
	FormulationMarkers []string

	// HeaderMarkers identify header rows (by first-cell substring) that
	// are skipped during formulation scanning.
	HeaderMarkers []string
}

// Extractor handles tabular workbooks (.xlsx, .xls).
type Extractor struct {
	cfg Config
}

// New creates a workbook extractor. Zero-value config fields fall back
// to the default keyword sets.
func New(cfg Config) *Extractor {
	if len(cfg.FormulationMarkers) == 0 {
		cfg.FormulationMarkers = DefaultFormulationMarkers
	}
	if len(cfg.HeaderMarkers) == 0 {
		cfg.HeaderMarkers = DefaultHeaderMarkers
	}
	return &Extractor{cfg: cfg}
}

// Extensions returns the extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"xlsx", "xls"}
}

// Extract iterates every sheet, concatenating non-empty cell values per
// row, and scans formulation sheets for ingredient/ratio pairs.
func (e *Extractor) Extract(
	_ context.Context, content []byte, _ string,
) (string, *domain.StructuredData, error) {
	wb, err := openWorkbook(content)
	if err != nil {
		return "", nil, fmt.Errorf("open workbook: %w", err)
	}

	var allText []string
	structured := &domain.StructuredData{}

	for _, sheet := range wb.sheets {
		var lines []string
		var table [][]string

		for _, row := range sheet.rows {
			if len(row) == 0 {
				continue
			}
			table = append(table, row)
			lines = append(lines, strings.Join(row, cellSeparator))
		}

		sheetData := domain.SheetData{
			Name:    sheet.name,
			Content: lines,
		}
		if len(table) > 0 {
			sheetData.Tables = append(sheetData.Tables, table)
		}

		if e.isFormulationSheet(sheet.name) && len(table) > 0 {
			if f := e.extractFormulation(table); f != nil {
				f.SheetName = sheet.name
				structured.Formulations = append(structured.Formulations, *f)
			}
		}

		structured.Sheets = append(structured.Sheets, sheetData)
		allText = append(allText, fmt.Sprintf("[シート: %s]", sheet.name))
		allText = append(allText, lines...)
	}

	return strings.Join(allText, "\n"), structured, nil
}

// isFormulationSheet reports whether the sheet name carries any of the
// configured formulation markers.
func (e *Extractor) isFormulationSheet(name string) bool {
	for _, marker := range e.cfg.FormulationMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// extractFormulation scans a table for ingredient/ratio pairs. Header
// rows are skipped; the first cell in a row that parses as a number
// (after stripping % and g unit suffixes) yields one pair with the
// row's first cell as the ingredient name. Returns nil when no pair was
// found.
func (e *Extractor) extractFormulation(table [][]string) *domain.Formulation {
	f := &domain.Formulation{}

	for _, row := range table {
		if len(row) < 2 {
			continue
		}
		if e.isHeaderRow(row[0]) {
			continue
		}

		for _, cell := range row {
			ratio, ok := parseRatio(cell)
			if !ok {
				continue
			}
			f.Ingredients = append(f.Ingredients, row[0])
			f.Ratios = append(f.Ratios, ratio)
			break
		}
	}

	if len(f.Ingredients) == 0 {
		return nil
	}
	return f
}

// isHeaderRow reports whether the first cell marks a header row.
func (e *Extractor) isHeaderRow(firstCell string) bool {
	lower := strings.ToLower(firstCell)
	for _, marker := range e.cfg.HeaderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseRatio parses a numeric ratio from a cell, stripping % and g unit
// suffixes first.
func parseRatio(cell string) (float64, bool) {
	cleaned := strings.ReplaceAll(cell, "%", "")
	cleaned = strings.ReplaceAll(cleaned, "g", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// workbook is the parsed in-memory form of an OOXML spreadsheet.
type workbook struct {
	sheets []worksheet
}

// worksheet holds one sheet's non-empty cell values in document order.
type worksheet struct {
	name string
	rows [][]string
}

// openWorkbook parses the OOXML ZIP container: workbook.xml for sheet
// names and order, the relationship part for worksheet targets, the
// shared string table, and each worksheet's cell values.
func openWorkbook(content []byte) (*workbook, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not an OOXML archive", domain.ErrInvalidInput)
	}

	parts := make(map[string][]byte)
	for _, file := range reader.File {
		data, err := readZipFile(file)
		if err != nil {
			return nil, err
		}
		parts[file.Name] = data
	}

	wbXML, ok := parts["xl/workbook.xml"]
	if !ok {
		return nil, fmt.Errorf("%w: missing workbook part", domain.ErrInvalidInput)
	}

	sheetRefs, err := parseWorkbookXML(wbXML)
	if err != nil {
		return nil, err
	}

	targets, err := parseRelationships(parts["xl/_rels/workbook.xml.rels"])
	if err != nil {
		return nil, err
	}

	shared, err := parseSharedStrings(parts["xl/sharedStrings.xml"])
	if err != nil {
		return nil, err
	}

	wb := &workbook{}
	for _, ref := range sheetRefs {
		target, ok := targets[ref.relID]
		if !ok {
			continue
		}
		data, ok := parts[resolveTarget(target)]
		if !ok {
			continue
		}
		rows, err := parseWorksheet(data, shared)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", ref.name, err)
		}
		wb.sheets = append(wb.sheets, worksheet{name: ref.name, rows: rows})
	}

	return wb, nil
}

// resolveTarget maps a relationship target to its part name in the archive.
func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return "xl/" + target
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}
	return buf.Bytes(), nil
}
