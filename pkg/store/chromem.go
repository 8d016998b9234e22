package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/xhad/paperqa/internal/models"
)

// ChromemIndex is a local vector index with one chromem collection per paper.
type ChromemIndex struct {
	db        *chromem.DB
	vectorDim int
}

// NewChromemIndex opens a persistent index at path, or an in-memory one when
// path is empty.
func NewChromemIndex(path string, vectorDim int) (*ChromemIndex, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
	}
	return &ChromemIndex{db: db, vectorDim: vectorDim}, nil
}

// Chunks are always embedded before they reach the index.
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chunk has no embedding")
}

func (ci *ChromemIndex) collection(url string) (*chromem.Collection, error) {
	metadata := map[string]string{"url": url}
	collection, err := ci.db.GetOrCreateCollection("paper-"+models.Key(url), metadata, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	return collection, nil
}

func (ci *ChromemIndex) Store(ctx context.Context, chunks []models.Chunk) error {
	byURL := make(map[string][]chromem.Document)
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
		if ci.vectorDim > 0 && len(chunk.Embedding) != ci.vectorDim {
			return fmt.Errorf("chunk %s has %d dimensions, expected %d", chunk.ID, len(chunk.Embedding), ci.vectorDim)
		}
		byURL[chunk.URL] = append(byURL[chunk.URL], chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata: map[string]string{
				"url":         chunk.URL,
				"page":        strconv.Itoa(chunk.Page),
				"chunk_index": strconv.Itoa(chunk.ChunkIndex),
			},
		})
	}

	for url, docs := range byURL {
		collection, err := ci.collection(url)
		if err != nil {
			return err
		}
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add chunks: %w", err)
		}
	}
	return nil
}

func (ci *ChromemIndex) Query(ctx context.Context, url string, queryEmbedding []float32, limit int) ([]models.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	if ci.vectorDim > 0 && len(queryEmbedding) != ci.vectorDim {
		return nil, fmt.Errorf("query has %d dimensions, expected %d", len(queryEmbedding), ci.vectorDim)
	}

	collection := ci.db.GetCollection("paper-"+models.Key(url), noEmbedding)
	if collection == nil {
		return nil, nil
	}

	// chromem rejects limits above the collection size
	if count := collection.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, queryEmbedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(results))
	for _, result := range results {
		page, _ := strconv.Atoi(result.Metadata["page"])
		index, _ := strconv.Atoi(result.Metadata["chunk_index"])
		chunks = append(chunks, models.Chunk{
			ID:         result.ID,
			URL:        result.Metadata["url"],
			Content:    result.Content,
			Page:       page,
			ChunkIndex: index,
			Metadata: map[string]interface{}{
				"url":        result.Metadata["url"],
				"page":       page,
				"similarity": result.Similarity,
			},
		})
	}
	return chunks, nil
}

func (ci *ChromemIndex) Close() {}
