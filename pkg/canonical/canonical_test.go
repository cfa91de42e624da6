package canonical

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/readwise-epub/internal/testutil"
	"github.com/Sternrassler/readwise-epub/pkg/readwise"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(sourceURL string) readwise.Item {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return readwise.Item{SourceURL: sourceURL, CreatedAt: now, UpdatedAt: now}
}

// captureLogs routes the global logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func TestIsMailto(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"mailto:newsletter@example.com", true},
		{"MAILTO:Someone@example.com", true},
		{"https://example.com/mailto:x", false},
		{"mail", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMailto(tt.url))
		})
	}
}

func TestFilterMailto(t *testing.T) {
	items := []readwise.Item{
		item("https://a.test/1"),
		item("mailto:news@a.test"),
		item("https://a.test/2"),
		item("mailto:other@b.test"),
	}

	kept := FilterMailto(items)

	require.Len(t, kept, 2)
	assert.Equal(t, "https://a.test/1", kept[0].SourceURL)
	assert.Equal(t, "https://a.test/2", kept[1].SourceURL)
}

func TestCanonicalize_RewritesRedirects(t *testing.T) {
	mock := testutil.NewMockReadwise()
	defer mock.Close()

	mock.SetRedirect("/short", "/articles/full")
	mock.SetRedirect("/hop1", "/hop2")
	mock.SetRedirect("/hop2", "/articles/final")

	items := []readwise.Item{
		item(mock.ArticleURL("/short")),
		item(mock.ArticleURL("/articles/plain")),
		item(mock.ArticleURL("/hop1")),
	}

	logs := captureLogs(t)
	stats := NewResolver(DefaultConfig()).Canonicalize(context.Background(), items)

	assert.Equal(t, mock.ArticleURL("/articles/full"), items[0].SourceURL)
	assert.Equal(t, mock.ArticleURL("/articles/plain"), items[1].SourceURL)
	assert.Equal(t, mock.ArticleURL("/articles/final"), items[2].SourceURL)
	assert.Equal(t, Stats{Redirected: 2, Unchanged: 1}, stats)
	assert.Contains(t, logs.String(), mock.ArticleURL("/short"))
}

func TestCanonicalize_Idempotent(t *testing.T) {
	mock := testutil.NewMockReadwise()
	defer mock.Close()
	mock.SetRedirect("/old", "/new")

	items := []readwise.Item{item(mock.ArticleURL("/old"))}
	logs := captureLogs(t)
	resolver := NewResolver(DefaultConfig())

	first := resolver.Canonicalize(context.Background(), items)
	require.Equal(t, 1, first.Redirected)
	require.Contains(t, logs.String(), "Redirected")
	canonical := items[0].SourceURL

	logs.Reset()
	second := resolver.Canonicalize(context.Background(), items)

	assert.Equal(t, canonical, items[0].SourceURL)
	assert.Equal(t, Stats{Unchanged: 1}, second)
	assert.NotContains(t, logs.String(), "Redirected")
}

func TestCanonicalize_FailureLeavesURL(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	dead := server.URL + "/gone"
	server.Close()

	items := []readwise.Item{item(dead)}

	logs := captureLogs(t)
	stats := NewResolver(Config{Timeout: time.Second}).Canonicalize(context.Background(), items)

	assert.Equal(t, dead, items[0].SourceURL)
	assert.Equal(t, Stats{Failed: 1}, stats)
	assert.Contains(t, logs.String(), "Failed to HEAD")
	assert.Contains(t, logs.String(), dead)
}

func TestCanonicalize_ErrorStatusStillResolves(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/missing", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	items := []readwise.Item{item(server.URL + "/moved")}
	NewResolver(DefaultConfig()).Canonicalize(context.Background(), items)

	assert.Equal(t, server.URL+"/missing", items[0].SourceURL)
}

func TestCanonicalize_UsesHead(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.URL.Path == "/a" {
			http.Redirect(w, r, "/b", http.StatusMovedPermanently)
		}
	}))
	defer server.Close()

	NewResolver(DefaultConfig()).Canonicalize(context.Background(), []readwise.Item{item(server.URL + "/a")})

	assert.Equal(t, []string{http.MethodHead, http.MethodHead}, methods)
}

func TestCanonicalize_Parallel(t *testing.T) {
	mock := testutil.NewMockReadwise()
	defer mock.Close()

	var items []readwise.Item
	for i := 0; i < 20; i++ {
		path := "/p" + string(rune('a'+i))
		mock.SetRedirect(path, "/final"+path)
		items = append(items, item(mock.ArticleURL(path)))
	}

	stats := NewResolver(Config{Timeout: 5 * time.Second, Concurrency: 4}).Canonicalize(context.Background(), items)

	assert.Equal(t, 20, stats.Redirected)
	for i := range items {
		path := "/p" + string(rune('a'+i))
		assert.Equal(t, mock.ArticleURL("/final"+path), items[i].SourceURL)
	}
}
