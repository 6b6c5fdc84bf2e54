// Package chunker splits extracted text into bounded, overlapping
// segments, preferring natural break points.
package chunker

import (
	"strings"

	"github.com/shokudev/kura/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// breakMarkers are the preferred split points, in priority order:
// paragraph break, line break, Japanese full stop, Western full stop.
var breakMarkers = []string{"\n\n", "\n", "。", ". "}

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// Chunker splits text into overlapping chunks at natural break points.
// Sizes are measured in runes so that multi-byte text chunks correctly.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must stay below the chunk size for forward progress.
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Split returns the chunks of text in order. Every chunk is trimmed and
// non-empty; chunk start positions strictly increase, so the sequence is
// always finite.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	total := len(runes)

	var chunks []string
	start := 0

	for start < total {
		end := start + c.size
		if end >= total {
			// Final window: take the rest and stop. Stepping back by
			// the overlap here would re-emit the tail.
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Snap the window end to just after the nearest break marker,
		// searching backward within [start, end).
		for _, marker := range breakMarkers {
			if pos := lastIndex(runes, marker, start, end); pos > start {
				end = pos + len([]rune(marker))
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - c.overlap
		if next <= start {
			// Snapping collapsed the window; force forward progress.
			next = start + max(1, c.size-c.overlap)
		}
		start = next
	}

	return chunks
}

// lastIndex returns the rune index of the last occurrence of marker
// within runes[from:to], or -1 if absent.
func lastIndex(runes []rune, marker string, from, to int) int {
	m := []rune(marker)
	for i := to - len(m); i >= from; i-- {
		match := true
		for j := range m {
			if runes[i+j] != m[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
