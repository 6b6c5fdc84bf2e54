package driving

import (
	"context"

	"github.com/shokudev/kura/internal/core/domain"
)

// QueryService answers natural-language queries against the knowledge
// base and exposes query-adjacent reads.
type QueryService interface {
	// Search runs the retrieval-augmented query flow: embed, hybrid
	// search, context assembly, answer generation, result formatting.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.Answer, error)

	// History returns a user's most recent queries.
	History(ctx context.Context, userID string, limit int) ([]domain.SearchHistoryEntry, error)

	// Facets returns the available filter values.
	Facets(ctx context.Context) (*domain.Facets, error)

	// Stats returns knowledge base counters.
	Stats(ctx context.Context) (*domain.Stats, error)
}
