package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/paperqa/internal/models"
	"golang.org/x/time/rate"
)

var (
	ErrNoPDFLink = errors.New("no PDF link found on page")
	ErrTooLarge  = errors.New("response body exceeds size limit")
)

type FetcherConfig struct {
	RateLimit float64 // requests per second
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
}

type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config FetcherConfig) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 50 << 20
	}
	if config.UserAgent == "" {
		config.UserAgent = "paperqa/1.0"
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Fetcher{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Fetcher {
	return NewWithConfig(FetcherConfig{})
}

// Fetch downloads the PDF at urlStr. An HTML landing page is followed to
// the PDF it links, one hop only.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*models.Download, error) {
	body, contentType, err := f.get(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	if isPDF(contentType, body) {
		return &models.Download{URL: urlStr, Data: body}, nil
	}

	if !isHTML(contentType, body) {
		return nil, fmt.Errorf("unsupported content type %q for URL: %s", contentType, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse landing page: %w", err)
	}

	pdfURL, err := findPDFLink(doc, urlStr)
	if err != nil {
		return nil, err
	}

	body, contentType, err = f.get(ctx, pdfURL)
	if err != nil {
		return nil, err
	}
	if !isPDF(contentType, body) {
		return nil, fmt.Errorf("linked document is not a PDF: %s", pdfURL)
	}

	return &models.Download{
		URL:   urlStr,
		Title: extractTitle(doc),
		Data:  body,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, urlStr string) ([]byte, string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", fmt.Errorf("invalid paper URL: %s", urlStr)
	}

	// Apply rate limiting
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", urlStr, err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return nil, "", fmt.Errorf("%w: %s", ErrTooLarge, urlStr)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func isPDF(contentType string, body []byte) bool {
	return bytes.HasPrefix(body, []byte("%PDF-")) ||
		strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return strings.Contains(strings.ToLower(http.DetectContentType(body)), "html")
}

func findPDFLink(doc *goquery.Document, base string) (string, error) {
	href, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content")
	if !ok || strings.TrimSpace(href) == "" {
		doc.Find("a[href]").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
			link, _ := selection.Attr("href")
			path := strings.ToLower(strings.SplitN(link, "?", 2)[0])
			if strings.HasSuffix(path, ".pdf") || strings.Contains(path, "/pdf/") {
				href = link
				return false
			}
			return true
		})
	}

	href = strings.TrimSpace(href)
	if href == "" {
		return "", ErrNoPDFLink
	}

	link, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("error parsing PDF link: %w", err)
	}

	// Make sure the URL is absolute
	if !link.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("error parsing base URL: %w", err)
		}
		link = baseURL.ResolveReference(link)
	}

	return link.String(), nil
}

func extractTitle(doc *goquery.Document) string {
	if title, ok := doc.Find(`meta[name="citation_title"]`).Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.Join(strings.Fields(title), " ")
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
