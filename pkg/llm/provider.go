package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

func newChatModel(config ChatConfig) (llms.Model, error) {
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case ProviderOllama:
		model := config.Model
		if model == "" {
			model = "mistral" // Default Ollama model
		}
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default Ollama URL
		}
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	case ProviderGemini:
		return newGeminiModel(context.Background(), config.APIKey, config.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}

func newEmbedderClient(config EmbedderConfig) (embeddings.EmbedderClient, error) {
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case ProviderOllama:
		model := config.Model
		if model == "" {
			model = "nomic-embed-text:latest"
		}
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	case ProviderGemini:
		return newGeminiEmbedder(context.Background(), config.APIKey, config.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}
