package domain

// StructuredData is the format-specific payload produced by extraction.
// Only the fields relevant to the source format are populated.
type StructuredData struct {
	// Sheets holds per-worksheet content for tabular workbooks.
	Sheets []SheetData `json:"sheets,omitempty"`

	// Formulations holds ingredient/ratio tables found in formulation
	// sheets of tabular workbooks.
	Formulations []Formulation `json:"formulations,omitempty"`

	// Paragraphs holds paragraph text for word-processing documents.
	Paragraphs []ParagraphData `json:"paragraphs,omitempty"`

	// Tables holds table cell text for word-processing documents.
	Tables [][][]string `json:"tables,omitempty"`

	// Slides holds per-slide content for slide decks.
	Slides []SlideData `json:"slides,omitempty"`

	// Pages holds per-page text for PDF documents.
	Pages []PageData `json:"pages,omitempty"`

	// Image holds format metadata for image uploads.
	Image *ImageData `json:"image,omitempty"`
}

// SheetData is the extracted content of one worksheet.
type SheetData struct {
	// Name is the worksheet name.
	Name string `json:"name"`

	// Content is one entry per non-empty row, cells joined with " | ".
	Content []string `json:"content"`

	// Tables holds the raw cell values of the sheet's table.
	Tables [][][]string `json:"tables,omitempty"`
}

// Formulation is an ingredient/ratio table extracted from a worksheet
// whose name marks it as a recipe sheet.
type Formulation struct {
	// SheetName is the worksheet the formulation came from.
	SheetName string `json:"sheet_name"`

	// Ingredients and Ratios are parallel: Ratios[i] belongs to Ingredients[i].
	Ingredients []string  `json:"ingredients"`
	Ratios      []float64 `json:"ratios"`

	// Notes holds free-form remarks found alongside the table.
	Notes []string `json:"notes,omitempty"`
}

// ParagraphData is one paragraph of a word-processing document.
type ParagraphData struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// SlideData is the extracted content of one slide.
type SlideData struct {
	Number  int      `json:"number"`
	Content []string `json:"content"`
}

// PageData is the extracted text of one PDF page.
// Content is empty when extraction failed for that page.
type PageData struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// ImageData describes an image upload. No OCR is performed.
type ImageData struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mode   string `json:"mode"`
}
