package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure GenerationService implements the interface.
var _ driven.GenerationService = (*GenerationService)(nil)

// Generation defaults. The low temperature keeps answers close to the
// retrieved records.
const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
)

// defaultSystemPrompt grounds the assistant in the knowledge base and
// forbids answers beyond the retrieved records.
const defaultSystemPrompt = `あなたは食品開発ナレッジ検索アシスタントです。
過去の検証記録や配合データに基づいて、開発者の質問に回答してください。

回答のルール:
1. 検索結果に基づいた事実のみを回答してください
2. 関連する過去の案件があれば、その内容を簡潔に説明してください
3. 配合や製造手順の情報があれば、具体的に提示してください
4. 情報がない場合は「該当する過去データが見つかりませんでした」と正直に回答してください
5. 専門用語（離水、老化、テクスチャ等）はそのまま使用してください`

// userPromptTemplate frames the retrieved context and the question.
const userPromptTemplate = `以下の検索結果に基づいて質問に回答してください。

検索結果:
%s

質問: %s

回答:`

// GenerationConfig holds configuration for the generation service.
type GenerationConfig struct {
	// APIKey is the API key (required).
	APIKey string

	// AzureEndpoint switches the client to an Azure OpenAI resource
	// when non-empty.
	AzureEndpoint string

	// Model is the chat model or Azure deployment name.
	Model string

	// Temperature overrides the default sampling temperature when > 0.
	Temperature float32

	// MaxTokens bounds the answer length. Zero means the default.
	MaxTokens int
}

// GenerationService produces grounded answers through the OpenAI chat API.
type GenerationService struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGenerationService creates a new generation service.
func NewGenerationService(cfg GenerationConfig) (*GenerationService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &GenerationService{
		client:      newClient(cfg.APIKey, cfg.AzureEndpoint),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate answers query using only the retrieved context.
func (s *GenerationService) Generate(
	ctx context.Context, query, context_, systemPrompt string,
) (string, error) {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(userPromptTemplate, context_, query),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no completion returned")
	}
	return resp.Choices[0].Message.Content, nil
}
