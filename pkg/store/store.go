package store

import (
	"errors"
	"fmt"

	"github.com/xhad/paperqa/internal/types"
)

// ErrNotFound is returned when a paper or QA record does not exist.
var ErrNotFound = errors.New("record not found")

const (
	BackendLocal    = "local"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend     string
	DataDir     string
	URL         string
	VectorDim   int
	BatchSize   int
	SearchLimit int
}

// Open returns the store for the configured backend.
func Open(config Config) (types.Store, error) {
	switch config.Backend {
	case BackendLocal, "":
		return NewLocalWithConfig(LocalConfig{
			DataDir:   config.DataDir,
			VectorDim: config.VectorDim,
		})
	case BackendPostgres:
		return NewPostgresWithConfig(PostgresConfig{
			ConnString:  config.URL,
			VectorDim:   config.VectorDim,
			BatchSize:   config.BatchSize,
			SearchLimit: config.SearchLimit,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", config.Backend)
	}
}
