package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from SearchIndex which stores and searches
// vectors. EmbeddingService generates vectors; SearchIndex stores them.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 1536).
	// This must match the search index schema.
	Dimensions() int
}
