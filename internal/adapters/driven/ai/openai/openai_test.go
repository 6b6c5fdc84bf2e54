package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(EmbeddingConfig{})
	assert.Error(t, err)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(EmbeddingConfig{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, DefaultEmbeddingModel, svc.model)
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.NotNil(t, svc.limiter)
}

func TestNewEmbeddingService_AzureEndpoint(t *testing.T) {
	svc, err := NewEmbeddingService(EmbeddingConfig{
		APIKey:        "test-key",
		AzureEndpoint: "https://example.openai.azure.com",
		Model:         "embedding-deployment",
		Dimensions:    3072,
	})
	require.NoError(t, err)
	assert.Equal(t, "embedding-deployment", svc.model)
	assert.Equal(t, 3072, svc.Dimensions())
}

func TestNewGenerationService_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerationService(GenerationConfig{})
	assert.Error(t, err)
}

func TestNewGenerationService_Defaults(t *testing.T) {
	svc, err := NewGenerationService(GenerationConfig{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, DefaultChatModel, svc.model)
	assert.Equal(t, float32(DefaultTemperature), svc.temperature)
	assert.Equal(t, DefaultMaxTokens, svc.maxTokens)
}
