package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/option"
)

// geminiModel adapts a Gemini generative model to llms.Model.
type geminiModel struct {
	client *genai.Client
	model  string
}

func newGeminiModel(ctx context.Context, apiKey, model string) (*geminiModel, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiModel{client: client, model: model}, nil
}

func (g *geminiModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(opts.Temperature))
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	if opts.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	var parts []genai.Part
	for _, message := range messages {
		text := messageText(message)
		if message.Role == llms.ChatMessageTypeSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(text)}}
			continue
		}
		parts = append(parts, genai.Text(text))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, err
	}

	response := &llms.ContentResponse{}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var text []string
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text = append(text, string(t))
			}
		}
		response.Choices = append(response.Choices, &llms.ContentChoice{
			Content:    strings.Join(text, ""),
			StopReason: fmt.Sprint(cand.FinishReason),
		})
	}
	return response, nil
}

func (g *geminiModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

func messageText(message llms.MessageContent) string {
	var text []string
	for _, part := range message.Parts {
		if t, ok := part.(llms.TextContent); ok {
			text = append(text, t.Text)
		}
	}
	return strings.Join(text, "\n")
}

// geminiEmbedder implements embeddings.EmbedderClient with the Gemini embedding API.
type geminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func newGeminiEmbedder(ctx context.Context, apiKey, model string) (*geminiEmbedder, error) {
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiEmbedder{client: client, model: client.EmbeddingModel(model)}, nil
}

func (g *geminiEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	batch := g.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with Gemini: %w", err)
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("empty Gemini embedding")
		}
		vector := make([]float32, len(e.Values))
		for i, v := range e.Values {
			vector[i] = float32(v)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}
