package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xhad/paperqa/internal/models"
)

// FileStore keeps paper and QA records as JSON files named by URL hash.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"papers", "qa"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) paperPath(url string) string {
	return filepath.Join(s.dir, "papers", models.Key(url)+".json")
}

func (s *FileStore) qaPath(url string) string {
	return filepath.Join(s.dir, "qa", models.Key(url)+".json")
}

func (s *FileStore) GetPaper(ctx context.Context, url string) (*models.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var paper models.Paper
	if err := readJSON(s.paperPath(url), &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// SavePaper writes the paper unless one with the same URL already exists.
func (s *FileStore) SavePaper(ctx context.Context, paper models.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.paperPath(paper.URL)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeJSON(path, paper)
}

func (s *FileStore) GetQA(ctx context.Context, paperURL, question string) (*models.QARecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readQA(paperURL)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.Question == question {
			return &record, nil
		}
	}
	return nil, ErrNotFound
}

// SaveQA appends the record unless the question was already answered.
func (s *FileStore) SaveQA(ctx context.Context, record models.QARecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readQA(record.PaperURL)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, existing := range records {
		if existing.Question == record.Question {
			return nil
		}
	}
	return writeJSON(s.qaPath(record.PaperURL), append(records, record))
}

func (s *FileStore) readQA(paperURL string) ([]models.QARecord, error) {
	var records []models.QARecord
	if err := readJSON(s.qaPath(paperURL), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimSuffix(filepath.Base(path), ".json")+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
