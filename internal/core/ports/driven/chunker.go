package driven

// Chunker splits extracted text into bounded, overlapping segments
// suitable for embedding.
type Chunker interface {
	// Split returns the chunks of text in order. Every chunk is
	// non-empty and trimmed; chunk start positions strictly increase.
	Split(text string) []string
}
