package loader

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/paperqa/internal/models"
)

type LoaderConfig struct {
	Password string
}

// Loader extracts page text from PDF documents.
type Loader struct {
	config LoaderConfig
}

func NewWithConfig(config LoaderConfig) *Loader {
	return &Loader{config: config}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// Load returns the pages of pdf in page order. Pages without text are kept
// so page numbers stay aligned with the document.
func (l *Loader) Load(ctx context.Context, pdf []byte) ([]models.Page, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty PDF document")
	}

	var opts []documentloaders.PDFOptions
	if l.config.Password != "" {
		opts = append(opts, documentloaders.WithPassword(l.config.Password))
	}

	docs, err := documentloaders.NewPDF(bytes.NewReader(pdf), int64(len(pdf)), opts...).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load PDF: %w", err)
	}

	return toPages(docs), nil
}

func toPages(docs []schema.Document) []models.Page {
	pages := make([]models.Page, 0, len(docs))
	for i, doc := range docs {
		number := i + 1
		if n, ok := pageNumber(doc.Metadata["page"]); ok {
			number = n
		}
		pages = append(pages, models.Page{
			Number:  number,
			Content: doc.PageContent,
		})
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Number < pages[j].Number
	})
	return pages
}

func pageNumber(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ParsePagesToDelete parses a comma-separated list of 1-based page numbers.
// Blank entries are ignored.
func ParsePagesToDelete(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", n)
		}
		pages = append(pages, n)
	}
	return pages, nil
}

// DeletePages returns pages without the given page numbers. Numbers outside
// the document are ignored.
func DeletePages(pages []models.Page, toDelete []int) []models.Page {
	if len(toDelete) == 0 {
		return pages
	}

	drop := make(map[int]bool, len(toDelete))
	for _, n := range toDelete {
		drop[n] = true
	}

	kept := make([]models.Page, 0, len(pages))
	for _, page := range pages {
		if !drop[page.Number] {
			kept = append(kept, page)
		}
	}
	return kept
}

// Text joins the page contents into the full paper text.
func Text(pages []models.Page) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if content := strings.TrimSpace(page.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}
