package driven

import "context"

// GenerationService produces a grounded natural-language answer.
type GenerationService interface {
	// Generate answers query using only the retrieved context.
	// systemPrompt overrides the default grounding instructions when
	// non-empty.
	Generate(ctx context.Context, query, context_, systemPrompt string) (string, error)
}
