// Package openai provides embedding and answer generation adapters
// backed by the OpenAI API, including Azure OpenAI deployments.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultDimensions     = 1536

	// DefaultEmbeddingRPS throttles embedding calls below the typical
	// deployment quota so a large workbook does not trip rate limits.
	DefaultEmbeddingRPS   = 10
	DefaultEmbeddingBurst = 10
)

// EmbeddingConfig holds configuration for the embedding service.
type EmbeddingConfig struct {
	// APIKey is the API key (required).
	APIKey string

	// AzureEndpoint switches the client to an Azure OpenAI resource
	// when non-empty, e.g. "https://myresource.openai.azure.com".
	AzureEndpoint string

	// Model is the embedding model or Azure deployment name.
	Model string

	// Dimensions is the embedding vector size. Must match the search
	// index schema.
	Dimensions int

	// RPS and Burst tune the client-side rate limit. Zero means the
	// defaults.
	RPS   float64
	Burst int
}

// EmbeddingService generates embeddings through the OpenAI API.
type EmbeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg EmbeddingConfig) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.RPS == 0 {
		cfg.RPS = DefaultEmbeddingRPS
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultEmbeddingBurst
	}

	return &EmbeddingService{
		client:     newClient(cfg.APIKey, cfg.AzureEndpoint),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors[data.Index] = vector
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// newClient builds a client for either the public API or an Azure
// OpenAI resource.
func newClient(apiKey, azureEndpoint string) *openai.Client {
	if azureEndpoint != "" {
		return openai.NewClientWithConfig(openai.DefaultAzureConfig(apiKey, azureEndpoint))
	}
	return openai.NewClient(apiKey)
}
