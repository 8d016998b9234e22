package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/llm"
	"github.com/xhad/paperqa/pkg/loader"
	"github.com/xhad/paperqa/pkg/store"
)

var (
	// ErrPaperNotFound is returned by Ask when notes were never taken on the paper.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrInvalidRequest wraps problems with the caller's input.
	ErrInvalidRequest = errors.New("invalid request")
)

// Progress stages reported through OnProgress.
const (
	StageFetching   = "fetching"
	StageLoading    = "loading"
	StageNotes      = "taking notes"
	StageIndexing   = "indexing"
	StageRetrieving = "retrieving"
	StageAnswering  = "answering"
)

type TakeNotesRequest struct {
	PaperURL      string `json:"paperUrl"`
	PaperName     string `json:"paperName"`
	PagesToDelete string `json:"pagesToDelete,omitempty"`

	OnProgress func(stage string) `json:"-"`
}

type QARequest struct {
	PaperURL string `json:"paperUrl"`
	Question string `json:"question"`

	OnProgress func(stage string) `json:"-"`
}

type PipelineConfig struct {
	Fetcher     types.Fetcher
	Loader      types.Loader
	Splitter    types.Splitter
	Embedder    types.Embedder
	NoteTaker   types.NoteTaker
	Answerer    types.Answerer
	Store       types.Store
	SearchLimit int
}

// Pipeline sequences fetching, note taking, indexing and question answering.
type Pipeline struct {
	config  PipelineConfig
	flights flights
}

func NewWithConfig(config PipelineConfig) (*Pipeline, error) {
	if config.Fetcher == nil || config.Loader == nil || config.Splitter == nil {
		return nil, errors.New("fetcher, loader and splitter are required")
	}
	if config.Embedder == nil || config.NoteTaker == nil || config.Answerer == nil {
		return nil, errors.New("embedder, note taker and answerer are required")
	}
	if config.Store == nil {
		return nil, errors.New("store is required")
	}
	if config.SearchLimit <= 0 {
		config.SearchLimit = 4
	}
	return &Pipeline{config: config}, nil
}

// TakeNotes returns the notes of a paper, ingesting it on first use.
// Concurrent calls for the same URL share one ingestion, which keeps running
// when the caller that started it goes away.
func (p *Pipeline) TakeNotes(ctx context.Context, req TakeNotesRequest) ([]models.Note, error) {
	req.PaperURL = strings.TrimSpace(req.PaperURL)
	if req.PaperURL == "" {
		return nil, fmt.Errorf("%w: paperUrl is required", ErrInvalidRequest)
	}
	toDelete, err := loader.ParsePagesToDelete(req.PagesToDelete)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	v, shared, err := p.flights.do(ctx, notesKey(req.PaperURL), req.OnProgress, func(ctx context.Context, report func(string)) (interface{}, error) {
		return p.takeNotes(ctx, req, toDelete, report)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Printf("Shared notes for %s with a concurrent request", req.PaperURL)
	}
	return v.([]models.Note), nil
}

func (p *Pipeline) takeNotes(ctx context.Context, req TakeNotesRequest, toDelete []int, report func(string)) ([]models.Note, error) {
	paper, err := p.config.Store.GetPaper(ctx, req.PaperURL)
	if err == nil {
		log.Printf("Using cached notes for %s", req.PaperURL)
		return paper.Notes, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up paper: %w", err)
	}

	report(StageFetching)
	download, err := p.config.Fetcher.Fetch(ctx, req.PaperURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paper: %w", err)
	}

	report(StageLoading)
	pages, err := p.config.Loader.Load(ctx, download.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper: %w", err)
	}
	pages = loader.DeletePages(pages, toDelete)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages left after deleting %q", ErrInvalidRequest, req.PagesToDelete)
	}
	log.Printf("Loaded %d pages from %s", len(pages), req.PaperURL)

	report(StageNotes)
	notes, err := p.config.NoteTaker.TakeNotes(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("failed to take notes: %w", err)
	}

	report(StageIndexing)
	if err := p.index(ctx, req.PaperURL, pages); err != nil {
		return nil, err
	}

	name := req.PaperName
	if name == "" {
		name = download.Title
	}
	if name == "" {
		name = req.PaperURL
	}

	err = p.config.Store.SavePaper(ctx, models.Paper{
		URL:       req.PaperURL,
		Name:      name,
		Paper:     loader.Text(pages),
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save paper: %w", err)
	}

	log.Printf("Took %d notes on %s", len(notes), req.PaperURL)
	return notes, nil
}

func (p *Pipeline) index(ctx context.Context, url string, pages []models.Page) error {
	chunks, err := p.config.Splitter.Split(url, pages)
	if err != nil {
		return fmt.Errorf("failed to split paper: %w", err)
	}
	if len(chunks) == 0 {
		log.Printf("No chunks to index for %s", url)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := p.config.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.config.Store.Store(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	log.Printf("Indexed %d chunks for %s", len(chunks), url)
	return nil
}

// Ask answers a question about a paper whose notes were already taken.
// Answers are cached per paper and exact question text.
func (p *Pipeline) Ask(ctx context.Context, req QARequest) (*models.Answer, error) {
	req.PaperURL = strings.TrimSpace(req.PaperURL)
	if req.PaperURL == "" {
		return nil, fmt.Errorf("%w: paperUrl is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}

	v, _, err := p.flights.do(ctx, qaKey(req.PaperURL, req.Question), req.OnProgress, func(ctx context.Context, report func(string)) (interface{}, error) {
		return p.ask(ctx, req, report)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Answer), nil
}

func (p *Pipeline) ask(ctx context.Context, req QARequest, report func(string)) (*models.Answer, error) {
	record, err := p.config.Store.GetQA(ctx, req.PaperURL, req.Question)
	if err == nil {
		log.Printf("Using cached answer for %q", req.Question)
		return &models.Answer{Answer: record.Answer, FollowupQuestions: record.FollowupQuestions}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up answer: %w", err)
	}

	paper, err := p.config.Store.GetPaper(ctx, req.PaperURL)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, req.PaperURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up paper: %w", err)
	}

	report(StageRetrieving)
	embedding, err := p.config.Embedder.EmbedQuery(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	chunks, err := p.config.Store.Query(ctx, req.PaperURL, embedding, p.config.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	report(StageAnswering)
	answer, err := p.config.Answerer.Answer(ctx, req.Question, paper.Notes, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	err = p.config.Store.SaveQA(ctx, models.QARecord{
		PaperURL:          req.PaperURL,
		Question:          req.Question,
		Answer:            answer.Answer,
		Context:           llm.FormatContext(chunks),
		FollowupQuestions: answer.FollowupQuestions,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	log.Printf("Answered %q using %d passages", req.Question, len(chunks))
	return answer, nil
}

func notesKey(url string) string {
	return "notes\x00" + url
}

func qaKey(url, question string) string {
	return "qa\x00" + url + "\x00" + question
}
