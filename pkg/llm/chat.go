package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/paperqa/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string // Ollama server URL or OpenAI-compatible endpoint
	Temperature   float64
	MaxTokens     int
	NotesTemplate string
	QATemplate    string
}

// ChatEngine takes notes on papers and answers questions about them.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := chatDefaults(config)
	if err != nil {
		return nil, err
	}

	llm, err := newChatModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel creates a ChatEngine over an existing model.
func NewWithModel(llm llms.Model, config ChatConfig) (*ChatEngine, error) {
	config, err := chatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: llm}, nil
}

func chatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return config, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.NotesTemplate == "" {
		config.NotesTemplate = defaultNotesTemplate
	}
	if config.QATemplate == "" {
		config.QATemplate = defaultQATemplate
	}
	return config, nil
}

// TakeNotes asks the model for structured notes covering every page.
func (ce *ChatEngine) TakeNotes(ctx context.Context, pages []models.Page) ([]models.Note, error) {
	var paper strings.Builder
	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			continue
		}
		paper.WriteString(fmt.Sprintf("[page %d]\n%s\n\n", page.Number, page.Content))
	}
	if paper.Len() == 0 {
		return nil, fmt.Errorf("paper has no text to take notes on")
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.NotesTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, paper.String()),
	}

	text, err := ce.generate(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("note taking error: %w", err)
	}

	return parseNotes(text)
}

// Answer answers question from the paper notes and the retrieved chunks.
func (ce *ChatEngine) Answer(ctx context.Context, question string, notes []models.Note, chunks []models.Chunk) (*models.Answer, error) {
	system := fmt.Sprintf(ce.config.QATemplate, FormatNotes(notes), FormatContext(chunks))

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}

	text, err := ce.generate(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("chat error: %w", err)
	}

	return parseAnswer(text)
}

func (ce *ChatEngine) generate(ctx context.Context, content []llms.MessageContent) (string, error) {
	options := []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithJSONMode(),
	}

	response, err := ce.llm.GenerateContent(ctx, content, options...)
	if err != nil {
		return "", err
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", fmt.Errorf("no response from LLM")
	}

	return response.Choices[0].Content, nil
}

// FormatNotes renders notes as a bullet list with their pages.
func FormatNotes(notes []models.Note) string {
	var b strings.Builder
	for _, note := range notes {
		b.WriteString("- ")
		b.WriteString(note.Note)
		if len(note.PageNumbers) > 0 {
			pages := make([]string, len(note.PageNumbers))
			for i, p := range note.PageNumbers {
				pages[i] = fmt.Sprint(p)
			}
			b.WriteString(fmt.Sprintf(" (pages %s)", strings.Join(pages, ", ")))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatContext renders retrieved chunks the way they are stored as QA context.
func FormatContext(chunks []models.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("[page %d]\n%s", chunk.Page, chunk.Content))
	}
	return strings.Join(parts, "\n\n")
}
