// Package docx extracts text from OOXML word-processing documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// cellSeparator joins the cells of one table row.
const cellSeparator = " | "

// Extractor handles word-processing documents (.docx, .doc).
type Extractor struct{}

// New creates a word-processing document extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"docx", "doc"}
}

// Extract collects paragraph text followed by table rows, each row's
// cells joined with " | ".
func (e *Extractor) Extract(
	_ context.Context, content []byte, _ string,
) (string, *domain.StructuredData, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("%w: not an OOXML archive", domain.ErrInvalidInput)
	}

	body, err := readDocumentBody(reader)
	if err != nil {
		return "", nil, err
	}

	var allText []string
	structured := &domain.StructuredData{}

	for _, para := range body.Paragraphs {
		text := strings.TrimSpace(para.text())
		if text == "" {
			continue
		}
		structured.Paragraphs = append(structured.Paragraphs, domain.ParagraphData{
			Text:  text,
			Style: para.Properties.Style.Val,
		})
		allText = append(allText, text)
	}

	for _, tbl := range body.Tables {
		var table [][]string
		for _, row := range tbl.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var parts []string
				for _, para := range cell.Paragraphs {
					if text := strings.TrimSpace(para.text()); text != "" {
						parts = append(parts, text)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			if len(cells) == 0 {
				continue
			}
			table = append(table, cells)
			allText = append(allText, strings.Join(cells, cellSeparator))
		}
		if len(table) > 0 {
			structured.Tables = append(structured.Tables, table)
		}
	}

	return strings.Join(allText, "\n"), structured, nil
}

// readDocumentBody parses word/document.xml from the archive.
func readDocumentBody(reader *zip.Reader) (*documentBody, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: document.xml: %v", domain.ErrInvalidInput, err)
		}

		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: document.xml: %v", domain.ErrInvalidInput, err)
		}

		var doc documentXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: document.xml: %v", domain.ErrInvalidInput, err)
		}
		return &doc.Body, nil
	}
	return nil, fmt.Errorf("%w: missing document part", domain.ErrInvalidInput)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body documentBody `xml:"body"`
}

type documentBody struct {
	Paragraphs []paragraph `xml:"p"`
	Tables     []tableXML  `xml:"tbl"`
}

type paragraph struct {
	Properties paragraphProperties `xml:"pPr"`
	Runs       []run               `xml:"r"`
}

type paragraphProperties struct {
	Style paragraphStyle `xml:"pStyle"`
}

type paragraphStyle struct {
	Val string `xml:"val,attr"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

type tableXML struct {
	Rows []tableRow `xml:"tr"`
}

type tableRow struct {
	Cells []tableCell `xml:"tc"`
}

type tableCell struct {
	Paragraphs []paragraph `xml:"p"`
}

// text concatenates the paragraph's run text.
func (p paragraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}
