package driven

import (
	"context"

	"github.com/shokudev/kura/internal/core/domain"
)

// Extractor normalises one container format into plain text plus a
// structured payload. Each extractor handles specific file extensions.
type Extractor interface {
	// Extensions returns the lowercased extensions this extractor
	// handles, without the leading dot (e.g. "xlsx", "xls").
	Extensions() []string

	// Extract converts raw bytes into plain text and structured data.
	Extract(ctx context.Context, content []byte, filename string) (string, *domain.StructuredData, error)
}

// ExtractorRegistry dispatches extraction by file extension.
type ExtractorRegistry interface {
	// Extract routes to the extractor registered for the file's
	// extension. Returns domain.ErrUnsupportedFormat for unknown ones.
	Extract(ctx context.Context, content []byte, filename string) (string, *domain.StructuredData, error)

	// Supported reports whether the filename's extension has an extractor.
	Supported(filename string) bool
}
