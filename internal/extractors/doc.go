// Package extractors provides format-specific content extraction.
//
// Each subpackage normalises one container format (tabular workbook,
// word-processing document, slide deck, PDF, image) into plain text plus
// a structured payload. The Registry dispatches by file extension.
package extractors
