package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePDF = "%PDF-1.4\n% test document\n"

func newTestFetcher() *Fetcher {
	return NewWithConfig(FetcherConfig{RateLimit: 100})
}

func TestFetchPDFDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paperqa/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(fakePDF))
	}))
	defer server.Close()

	download, err := newTestFetcher().Fetch(context.Background(), server.URL+"/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/paper.pdf", download.URL)
	assert.Equal(t, fakePDF, string(download.Data))
	assert.Empty(t, download.Title)
}

func TestFetchFollowsLandingPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/abs/1234", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head>
					<title>ignored</title>
					<meta name="citation_title" content="Attention Is   All You Need">
					<meta name="citation_pdf_url" content="/pdf/1234.pdf">
				</head>
				<body><a href="/other.pdf">other</a></body>
			</html>
		`))
	})
	mux.HandleFunc("/pdf/1234.pdf", func(w http.ResponseWriter, r *http.Request) {
		// no content type, detected by magic bytes
		w.Write([]byte(fakePDF))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	download, err := newTestFetcher().Fetch(context.Background(), server.URL+"/abs/1234")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/abs/1234", download.URL)
	assert.Equal(t, "Attention Is All You Need", download.Title)
	assert.Equal(t, fakePDF, string(download.Data))
}

func TestFetchErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/nolink", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"a":1}`))
	})
	mux.HandleFunc("/big.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fakePDF + strings.Repeat("x", 100)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := NewWithConfig(FetcherConfig{RateLimit: 100, MaxBytes: 64})

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"not found", server.URL + "/missing", "received status code 404"},
		{"no pdf link", server.URL + "/nolink", "no PDF link found"},
		{"unsupported type", server.URL + "/json", "unsupported content type"},
		{"too large", server.URL + "/big.pdf", "exceeds size limit"},
		{"bad scheme", "ftp://example.com/paper.pdf", "invalid paper URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), tt.url)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindPDFLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "anchor with pdf suffix",
			html: `<a href="/about">About</a><a href="files/paper.PDF?dl=1">Download</a>`,
			want: "https://example.org/abs/files/paper.PDF?dl=1",
		},
		{
			name: "arxiv style pdf path",
			html: `<a href="https://arxiv.org/pdf/1706.03762v7">PDF</a>`,
			want: "https://arxiv.org/pdf/1706.03762v7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)

			got, err := findPDFLink(doc, "https://example.org/abs/1234")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
