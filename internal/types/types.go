package types

import (
	"context"

	"github.com/xhad/paperqa/internal/models"
)

// Core interfaces
type PaperStore interface {
	GetPaper(ctx context.Context, url string) (*models.Paper, error)
	SavePaper(ctx context.Context, paper models.Paper) error
}

type QAStore interface {
	GetQA(ctx context.Context, paperURL, question string) (*models.QARecord, error)
	SaveQA(ctx context.Context, record models.QARecord) error
}

type VectorStore interface {
	Store(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, url string, embedding []float32, limit int) ([]models.Chunk, error)
	Close()
}

// Store bundles the record and vector stores of one backend.
type Store interface {
	PaperStore
	QAStore
	VectorStore
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type NoteTaker interface {
	TakeNotes(ctx context.Context, pages []models.Page) ([]models.Note, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string, notes []models.Note, chunks []models.Chunk) (*models.Answer, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.Download, error)
}

type Loader interface {
	Load(ctx context.Context, pdf []byte) ([]models.Page, error)
}

type Splitter interface {
	Split(url string, pages []models.Page) ([]models.Chunk, error)
}
