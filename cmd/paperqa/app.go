package main

import (
	"fmt"
	"strings"

	"github.com/xhad/paperqa/internal/types"
	cfgPkg "github.com/xhad/paperqa/pkg/config"
	"github.com/xhad/paperqa/pkg/fetcher"
	"github.com/xhad/paperqa/pkg/llm"
	"github.com/xhad/paperqa/pkg/loader"
	"github.com/xhad/paperqa/pkg/pipeline"
	"github.com/xhad/paperqa/pkg/processor"
	"github.com/xhad/paperqa/pkg/store"
)

type app struct {
	config   *cfgPkg.Config
	store    types.Store
	pipeline *pipeline.Pipeline
}

func newApp(configPath string) (*app, error) {
	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    config.LLM.Provider,
		Model:       config.LLM.Model,
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  config.LLM.Provider,
		Model:     config.LLM.EmbeddingModel,
		APIKey:    config.LLM.APIKey,
		BaseURL:   config.LLM.BaseURL,
		BatchSize: config.Store.BatchSize,
		Dimension: config.Store.VectorDim,
	})
	if err != nil {
		return nil, err
	}

	backend, err := store.Open(store.Config{
		Backend:     config.Store.Backend,
		DataDir:     config.Store.DataDir,
		URL:         config.Store.URL,
		VectorDim:   config.Store.VectorDim,
		BatchSize:   config.Store.BatchSize,
		SearchLimit: config.Store.SearchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	splitter := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      config.Processor.ChunkSize,
		ChunkOverlap:   config.Processor.ChunkOverlap,
		MinChunkLength: config.Processor.MinChunkLength,
	})

	p, err := pipeline.NewWithConfig(pipeline.PipelineConfig{
		Fetcher: fetcher.NewWithConfig(fetcher.FetcherConfig{
			RateLimit: config.Fetcher.RateLimit,
			Timeout:   config.Fetcher.Timeout,
			MaxBytes:  config.Fetcher.MaxBytes,
			UserAgent: config.Fetcher.UserAgent,
		}),
		Loader:      loader.NewWithConfig(loader.LoaderConfig{Password: config.Loader.Password}),
		Splitter:    &splitter,
		Embedder:    embedder,
		NoteTaker:   chatEngine,
		Answerer:    chatEngine,
		Store:       backend,
		SearchLimit: config.Store.SearchLimit,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &app{config: config, store: backend, pipeline: p}, nil
}

func (a *app) Close() {
	a.store.Close()
}
