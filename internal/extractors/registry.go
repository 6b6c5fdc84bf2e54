package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches extraction to the extractor registered for a
// file's extension.
type Registry struct {
	byExtension map[string]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExtension: make(map[string]driven.Extractor),
	}
}

// Register adds an extractor for all the extensions it reports.
// Later registrations win on conflict.
func (r *Registry) Register(e driven.Extractor) {
	for _, ext := range e.Extensions() {
		r.byExtension[strings.ToLower(ext)] = e
	}
}

// Supported reports whether the filename's extension has an extractor.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.byExtension[normaliseExt(filename)]
	return ok
}

// Extract routes to the matching extractor.
func (r *Registry) Extract(
	ctx context.Context, content []byte, filename string,
) (string, *domain.StructuredData, error) {
	ext := normaliseExt(filename)
	e, ok := r.byExtension[ext]
	if !ok {
		return "", nil, fmt.Errorf("%w: .%s", domain.ErrUnsupportedFormat, ext)
	}
	return e.Extract(ctx, content, filename)
}

// Extensions returns all registered extensions, for diagnostics.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	return exts
}

// normaliseExt lowercases the extension and strips the leading dot.
func normaliseExt(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
