package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "OLLAMA_BASE_URL", "DATABASE_URL", "PAPERQA_DATA_DIR", "PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

store:
  backend: "postgres"
  url: "postgres://localhost:5432/test"
  vector_dim: 768
  batch_size: 50

fetcher:
  timeout: 10s
  rate_limit: 1.5

loader:
  password: "secret"

processor:
  chunk_size: 500
  chunk_overlap: 100

server:
  port: "9090"
  websocket: true
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres", config.Store.Backend)
	assert.Equal(t, "postgres://localhost:5432/test", config.Store.URL)
	assert.Equal(t, 768, config.Store.VectorDim)
	assert.Equal(t, 4, config.Store.SearchLimit)
	assert.Equal(t, 10*time.Second, config.Fetcher.Timeout)
	assert.Equal(t, 1.5, config.Fetcher.RateLimit)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, "secret", config.Loader.Password)
	assert.Equal(t, "9090", config.Server.Port)
	assert.True(t, config.Server.WebSocket)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, "local", config.Store.Backend)
	assert.Equal(t, 1536, config.Store.VectorDim)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, config.Processor.ChunkOverlap)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := newConfig()
		c.LLM.APIKey = "sk-test"
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name          string
		config        func() Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			config:       valid,
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			config: func() Config {
				c := valid()
				c.LLM.BaseURL = "invalid-url"
				c.LLM.Temperature = 3.0
				c.Store.Backend = "postgres"
				c.Processor.ChunkOverlap = 1000
				c.Server.Port = "http"
				return c
			},
			expectedErrs: 5,
			errorMessages: []string{
				"llm.base_url: invalid base URL",
				"llm.temperature: temperature must be between 0 and 2",
				"store.url: database URL is required",
				"processor.chunk_overlap: chunk_overlap must be non-negative",
				"server.port: port must be a number",
			},
		},
		{
			name: "missing api key and unknown backend",
			config: func() Config {
				c := valid()
				c.LLM.APIKey = ""
				c.Store.Backend = "redis"
				return c
			},
			expectedErrs: 2,
			errorMessages: []string{
				"llm.api_key: api key is required for provider openai",
				"store.backend: unknown backend: redis",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config()
			errors := config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("PAPERQA_DATA_DIR", "/tmp/papers")
	t.Setenv("PORT", "3000")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "sk-env", config.LLM.APIKey)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "/tmp/papers", config.Store.DataDir)
	assert.Equal(t, "3000", config.Server.Port)
}

func TestEnvironmentOverridesOllama(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")

	config := &Config{}
	config.LLM.Provider = "ollama"
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Empty(t, config.LLM.APIKey)
}

func TestLoadConfigKeepsExplicitZeros(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	explicit := filepath.Join(dir, "explicit.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("llm:\n  api_key: sk\n  temperature: 0\nprocessor:\n  chunk_overlap: 0\n"), 0644))
	config, err := LoadConfig(explicit)
	require.NoError(t, err)
	assert.Equal(t, 0.0, config.LLM.Temperature)
	assert.Equal(t, 0, config.Processor.ChunkOverlap)
	assert.Empty(t, config.Validate())

	absent := filepath.Join(dir, "absent.yaml")
	require.NoError(t, os.WriteFile(absent, []byte("llm:\n  api_key: sk\n"), 0644))
	config, err = LoadConfig(absent)
	require.NoError(t, err)
	assert.Equal(t, 0.2, config.LLM.Temperature)
	assert.Equal(t, 200, config.Processor.ChunkOverlap)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	tests := []struct {
		provider string
		env      string
		value    string
		want     func(c *Config) string
	}{
		{"openai", "OPENAI_API_KEY", "sk-env", func(c *Config) string { return c.LLM.APIKey }},
		{"gemini", "GEMINI_API_KEY", "gm-env", func(c *Config) string { return c.LLM.APIKey }},
		{"ollama", "OLLAMA_BASE_URL", "http://env:11434", func(c *Config) string { return c.LLM.BaseURL }},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)

			config := &Config{}
			config.LLM.Provider = tt.provider
			config.LLM.APIKey = "from-file"
			config.LLM.BaseURL = "http://file:11434"
			mergeWithEnv(config)

			assert.Equal(t, tt.value, tt.want(config))
		})
	}
}
