package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"`
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Store struct {
		Backend     string `yaml:"backend"`
		DataDir     string `yaml:"data_dir"`
		URL         string `yaml:"url"`
		VectorDim   int    `yaml:"vector_dim"`
		BatchSize   int    `yaml:"batch_size"`
		SearchLimit int    `yaml:"search_limit"`
	} `yaml:"store"`

	Fetcher struct {
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"`
		MaxBytes  int64         `yaml:"max_bytes"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"fetcher"`

	Loader struct {
		Password string `yaml:"password"`
	} `yaml:"loader"`

	Processor struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
	} `yaml:"processor"`

	Server struct {
		Port      string `yaml:"port"`
		WebSocket bool   `yaml:"websocket"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/paperqa/config.yaml"),
			"/etc/paperqa/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// keys missing from the file keep their preset values
	config := newConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(&config)
	applyDefaults(&config)
	return &config, nil
}

// newConfig presets the settings whose zero value is a valid choice, so an
// explicit 0 in the file is kept.
func newConfig() Config {
	var config Config
	config.LLM.Temperature = 0.2
	config.Processor.ChunkOverlap = 200
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	switch config.LLM.Provider {
	case "ollama":
		if config.LLM.Model == "" {
			config.LLM.Model = "mistral"
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		}
		if config.LLM.BaseURL == "" {
			config.LLM.BaseURL = "http://localhost:11434"
		}
	case "gemini":
		if config.LLM.Model == "" {
			config.LLM.Model = "gemini-1.5-flash"
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = "text-embedding-004"
		}
	default:
		if config.LLM.Model == "" {
			config.LLM.Model = "gpt-4o-mini"
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = "text-embedding-3-small"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 4096
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "local"
	}
	if config.Store.DataDir == "" {
		config.Store.DataDir = ".paperqa"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = DefaultVectorDim(config.LLM.Provider)
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 100
	}
	if config.Store.SearchLimit == 0 {
		config.Store.SearchLimit = 4
	}

	if config.Fetcher.Timeout == 0 {
		config.Fetcher.Timeout = 60 * time.Second
	}
	if config.Fetcher.RateLimit == 0 {
		config.Fetcher.RateLimit = 2.0
	}
	if config.Fetcher.MaxBytes == 0 {
		config.Fetcher.MaxBytes = 50 << 20
	}
	if config.Fetcher.UserAgent == "" {
		config.Fetcher.UserAgent = "paperqa/1.0"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.MinChunkLength == 0 {
		config.Processor.MinChunkLength = 20
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

// DefaultVectorDim is the embedding size of each provider's default embedding model.
func DefaultVectorDim(provider string) int {
	switch provider {
	case "ollama", "gemini":
		return 768
	default:
		return 1536
	}
}

// mergeWithEnv lets set environment variables override the file.
func mergeWithEnv(config *Config) {
	switch config.LLM.Provider {
	case "", "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			config.LLM.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			config.LLM.APIKey = key
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if dataDir := os.Getenv("PAPERQA_DATA_DIR"); dataDir != "" {
		config.Store.DataDir = dataDir
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
