package xlsx

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shokudev/kura/internal/core/domain"
)

// relationshipNS is the OOXML relationship attribute namespace used for
// the r:id attribute on sheet elements.
const relationshipNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// sheetRef is one sheet entry from xl/workbook.xml, in document order.
type sheetRef struct {
	name  string
	relID string
}

// workbookXML mirrors the parts of xl/workbook.xml we need.
type workbookXML struct {
	Sheets struct {
		Sheet []struct {
			Name  string `xml:"name,attr"`
			RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

func parseWorkbookXML(data []byte) ([]sheetRef, error) {
	var wb workbookXML
	if err := xml.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("%w: workbook.xml: %v", domain.ErrInvalidInput, err)
	}

	refs := make([]sheetRef, 0, len(wb.Sheets.Sheet))
	for _, s := range wb.Sheets.Sheet {
		refs = append(refs, sheetRef{name: s.Name, relID: s.RelID})
	}
	return refs, nil
}

// relationshipsXML mirrors xl/_rels/workbook.xml.rels.
type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func parseRelationships(data []byte) (map[string]string, error) {
	targets := make(map[string]string)
	if data == nil {
		return targets, nil
	}

	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("%w: workbook.xml.rels: %v", domain.ErrInvalidInput, err)
	}
	for _, rel := range rels.Relationships {
		targets[rel.ID] = rel.Target
	}
	return targets, nil
}

// richText is a string item that may be plain (<t>) or split into
// formatting runs (<r><t>). Both xl/sharedStrings.xml items and inline
// cell strings use this shape.
type richText struct {
	T    string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

// text flattens the item to its concatenated string value.
func (r richText) text() string {
	if len(r.Runs) == 0 {
		return r.T
	}
	var b strings.Builder
	b.WriteString(r.T)
	for _, run := range r.Runs {
		b.WriteString(run.T)
	}
	return b.String()
}

// sharedStringsXML mirrors xl/sharedStrings.xml.
type sharedStringsXML struct {
	Items []richText `xml:"si"`
}

func parseSharedStrings(data []byte) ([]string, error) {
	if data == nil {
		return nil, nil
	}

	var sst sharedStringsXML
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("%w: sharedStrings.xml: %v", domain.ErrInvalidInput, err)
	}

	strs := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		strs[i] = item.text()
	}
	return strs, nil
}

// worksheetXML mirrors the sheetData part of a worksheet.
type worksheetXML struct {
	SheetData struct {
		Rows []struct {
			Cells []cellXML `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

// cellXML is one cell. The t attribute selects the value encoding:
// "s" shared string index, "inlineStr" inline rich text, otherwise the
// raw <v> value (numbers, formula strings, booleans).
type cellXML struct {
	Type   string   `xml:"t,attr"`
	Value  string   `xml:"v"`
	Inline richText `xml:"is"`
}

// parseWorksheet returns the trimmed non-empty cell values per row.
// Rows that are entirely empty come back as empty slices and are
// filtered by the caller.
func parseWorksheet(data []byte, shared []string) ([][]string, error) {
	var ws worksheetXML
	if err := xml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: worksheet: %v", domain.ErrInvalidInput, err)
	}

	rows := make([][]string, 0, len(ws.SheetData.Rows))
	for _, row := range ws.SheetData.Rows {
		var values []string
		for _, cell := range row.Cells {
			value := strings.TrimSpace(cellValue(cell, shared))
			if value != "" {
				values = append(values, value)
			}
		}
		rows = append(rows, values)
	}
	return rows, nil
}

// cellValue decodes one cell to its display string.
func cellValue(cell cellXML, shared []string) string {
	switch cell.Type {
	case "s":
		var idx int
		if _, err := fmt.Sscanf(cell.Value, "%d", &idx); err != nil {
			return ""
		}
		if idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return cell.Inline.text()
	default:
		return cell.Value
	}
}
