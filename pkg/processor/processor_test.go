package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/paperqa/internal/models"
)

func TestProcessor_Split(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{
		ChunkSize:      50,
		ChunkOverlap:   10,
		MinChunkLength: 5,
	})

	pages := []models.Page{
		{Number: 1, Content: "Transformers   use\tattention."},
		{Number: 2, Content: ""},
		{Number: 3, Content: strings.Repeat("self attention layers ", 10)},
	}

	chunks, err := p.Split("https://arxiv.org/pdf/1706.03762", pages)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	first := chunks[0]
	assert.Equal(t, "Transformers use attention.", first.Content)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 0, first.ChunkIndex)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762", first.URL)
	assert.Equal(t, models.Key(first.URL)+"#p1-0", first.ID)
	assert.Equal(t, first.URL, first.Metadata["url"])

	for i, chunk := range chunks[1:] {
		assert.Equal(t, 3, chunk.Page)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.LessOrEqual(t, len([]rune(chunk.Content)), 50)
	}
}

func TestProcessor_SplitIsDeterministic(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{ChunkSize: 40, ChunkOverlap: 5})
	pages := []models.Page{{Number: 2, Content: strings.Repeat("positional encoding ", 8)}}

	a, err := p.Split("https://example.com/paper.pdf", pages)
	require.NoError(t, err)
	b, err := p.Split("https://example.com/paper.pdf", pages)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestProcessor_DropsShortChunks(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{MinChunkLength: 10})

	chunks, err := p.Split("u", []models.Page{{Number: 1, Content: "tiny"}})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "a   b\tc", "a b c"},
		{"keeps paragraphs", "first  line\nwraps\n\n\nsecond", "first line wraps\n\nsecond"},
		{"drops invalid utf8", "ok\xffok", "okok"},
		{"drops nul", "a\x00b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestProcessor_ZeroOverlap(t *testing.T) {
	p := NewWithConfig(ProcessorConfig{ChunkSize: 30, ChunkOverlap: 0, MinChunkLength: 1})
	assert.Equal(t, 0, p.config.ChunkOverlap)

	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	chunks, err := p.Split("u", []models.Page{{Number: 1, Content: text}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// without overlap the chunks rebuild the page text exactly once
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Content
	}
	assert.Equal(t, text, strings.Join(parts, " "))
}
