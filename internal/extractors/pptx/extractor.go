// Package pptx extracts text from OOXML slide decks.
package pptx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// cellSeparator joins the cells of one table row.
const cellSeparator = " | "

// slidePartPattern matches slide part names and captures the slide number.
var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extractor handles slide decks (.pptx, .ppt).
type Extractor struct{}

// New creates a slide deck extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"pptx", "ppt"}
}

// Extract walks the deck's slides in numeric order, prefixing each
// slide's shape text and table rows with a [スライド N] marker.
func (e *Extractor) Extract(
	_ context.Context, content []byte, _ string,
) (string, *domain.StructuredData, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("%w: not an OOXML archive", domain.ErrInvalidInput)
	}

	slides, err := readSlides(reader)
	if err != nil {
		return "", nil, err
	}

	var allText []string
	structured := &domain.StructuredData{}

	for _, slide := range slides {
		lines := slideLines(slide.content)

		structured.Slides = append(structured.Slides, domain.SlideData{
			Number:  slide.number,
			Content: lines,
		})
		allText = append(allText, fmt.Sprintf("[スライド %d]", slide.number))
		allText = append(allText, lines...)
	}

	return strings.Join(allText, "\n"), structured, nil
}

// slidePart is one slide's raw XML paired with its number in the deck.
type slidePart struct {
	number  int
	content slideXML
}

// readSlides parses every slide part and returns them in numeric order.
func readSlides(reader *zip.Reader) ([]slidePart, error) {
	var slides []slidePart

	for _, file := range reader.File {
		m := slidePartPattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, file.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, file.Name, err)
		}

		var slide slideXML
		if err := xml.Unmarshal(raw, &slide); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, file.Name, err)
		}
		slides = append(slides, slidePart{number: number, content: slide})
	}

	sort.Slice(slides, func(i, j int) bool {
		return slides[i].number < slides[j].number
	})
	return slides, nil
}

// slideLines flattens one slide into text lines: shape paragraphs
// first, then table rows with cells joined by " | ".
func slideLines(slide slideXML) []string {
	var lines []string

	for _, shape := range slide.Shapes {
		for _, para := range shape.Paragraphs {
			if text := strings.TrimSpace(para.text()); text != "" {
				lines = append(lines, text)
			}
		}
	}

	for _, frame := range slide.Frames {
		for _, tbl := range frame.Tables {
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
				if len(cells) > 0 {
					lines = append(lines, strings.Join(cells, cellSeparator))
				}
			}
		}
	}

	return lines
}

// slideXML represents the structure of one slide part.
type slideXML struct {
	Shapes []shapeXML     `xml:"cSld>spTree>sp"`
	Frames []graphicFrame `xml:"cSld>spTree>graphicFrame"`
}

type shapeXML struct {
	Paragraphs []textParagraph `xml:"txBody>p"`
}

type graphicFrame struct {
	Tables []tableXML `xml:"graphic>graphicData>tbl"`
}

type tableXML struct {
	Rows []tableRow `xml:"tr"`
}

type tableRow struct {
	Cells []tableCell `xml:"tc"`
}

type tableCell struct {
	Paragraphs []textParagraph `xml:"txBody>p"`
}

type textParagraph struct {
	Runs []textRun `xml:"r"`
}

type textRun struct {
	Text string `xml:"t"`
}

// text concatenates the paragraph's run text.
func (p textParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
