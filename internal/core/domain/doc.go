// Package domain defines the core business entities for Kura.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded artifact with parsed metadata and lifecycle status
//   - Chunk: A bounded slice of a document's extracted text
//   - StructuredData: Format-specific extraction payload
//   - SearchHistoryEntry: One recorded query event
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
