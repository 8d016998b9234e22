package store

import (
	"fmt"
	"path/filepath"
)

type LocalConfig struct {
	DataDir   string
	VectorDim int
}

// Local is the on-disk backend: JSON records plus a chromem vector index.
type Local struct {
	*FileStore
	*ChromemIndex
}

func NewLocalWithConfig(config LocalConfig) (*Local, error) {
	if config.DataDir == "" {
		config.DataDir = ".paperqa"
	}

	files, err := NewFileStore(config.DataDir)
	if err != nil {
		return nil, err
	}

	index, err := NewChromemIndex(filepath.Join(config.DataDir, "index"), config.VectorDim)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	return &Local{FileStore: files, ChromemIndex: index}, nil
}
