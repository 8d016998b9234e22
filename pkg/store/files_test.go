package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/paperqa/internal/models"
)

func TestFileStore_Papers(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.GetPaper(ctx, "https://example.com/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	paper := models.Paper{
		URL:       "https://example.com/a.pdf",
		Name:      "A",
		Paper:     "full text",
		Notes:     []models.Note{{Note: "uses attention", PageNumbers: []int{1, 2}}},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, fs.SavePaper(ctx, paper))

	got, err := fs.GetPaper(ctx, paper.URL)
	require.NoError(t, err)
	assert.Equal(t, paper, *got)

	// first write wins
	second := paper
	second.Name = "B"
	require.NoError(t, fs.SavePaper(ctx, second))
	got, err = fs.GetPaper(ctx, paper.URL)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}

func TestFileStore_QA(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.GetQA(ctx, "u", "why?")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.SaveQA(ctx, models.QARecord{PaperURL: "u", Question: "why?", Answer: "because"}))
	require.NoError(t, fs.SaveQA(ctx, models.QARecord{PaperURL: "u", Question: "how?", Answer: "like this"}))
	require.NoError(t, fs.SaveQA(ctx, models.QARecord{PaperURL: "u", Question: "why?", Answer: "changed"}))
	require.NoError(t, fs.SaveQA(ctx, models.QARecord{PaperURL: "v", Question: "why?", Answer: "other paper"}))

	got, err := fs.GetQA(ctx, "u", "why?")
	require.NoError(t, err)
	assert.Equal(t, "because", got.Answer)

	got, err = fs.GetQA(ctx, "v", "why?")
	require.NoError(t, err)
	assert.Equal(t, "other paper", got.Answer)

	_, err = fs.GetQA(ctx, "u", "when?")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "papers", models.Key("u")+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err = fs.GetPaper(context.Background(), "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
