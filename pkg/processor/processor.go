package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/paperqa/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.TextSplitter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	// zero overlap is a valid setting
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 20
	}

	return Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}
}

// Split cuts every page into chunks tagged with the paper URL and page number.
// Chunks never span pages.
func (p *Processor) Split(url string, pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	key := models.Key(url)

	for _, page := range pages {
		content := cleanText(page.Content)
		if content == "" {
			continue
		}

		parts, err := p.splitter.SplitText(content)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}

		index := 0
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if len(part) < p.config.MinChunkLength {
				continue
			}
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s#p%d-%d", key, page.Number, index),
				URL:        url,
				Content:    part,
				Page:       page.Number,
				ChunkIndex: index,
				Metadata: map[string]interface{}{
					"url":  url,
					"page": page.Number,
				},
			})
			index++
		}
	}

	return chunks, nil
}

// cleanText drops invalid UTF-8 and collapses runs of spaces while keeping
// paragraph breaks for the splitter.
func cleanText(text string) string {
	text = sanitizeUTF8(text)
	text = strings.ReplaceAll(text, "\x00", "")

	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	cleaned := make([]string, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		if paragraph = strings.Join(strings.Fields(paragraph), " "); paragraph != "" {
			cleaned = append(cleaned, paragraph)
		}
	}

	return strings.Join(cleaned, "\n\n")
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
