package query

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of openai.Client the engine calls; tests replace it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates an OpenAI client for cfg. An empty BaseURL keeps the
// library default.
func NewClient(cfg Config) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(config)
}
