// Package testutil provides testing utilities for the readwise-epub pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockItem describes one list result served by MockReadwise. Nil pointers are
// encoded as JSON null.
type MockItem struct {
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	SiteName  *string `json:"site_name"`
	SourceURL string  `json:"source_url"`
	WordCount *int    `json:"word_count"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// MockPage is one page served for a given cursor.
type MockPage struct {
	NextPageCursor *string
	Results        []MockItem
}

// MockReadwise is a configurable mock of the Reader list API and of the
// article hosts probed during URL canonicalization.
type MockReadwise struct {
	server *httptest.Server
	mu     sync.RWMutex

	// pages keyed by cursor; "" is the first page.
	pages     map[string]MockPage
	redirects map[string]string
	raw       map[string]string

	// Tracking
	RequestCount      int
	HeadCount         int
	Cursors           []string
	LastRequestHeader http.Header
}

// NewMockReadwise creates a new mock server.
func NewMockReadwise() *MockReadwise {
	mock := &MockReadwise{
		pages:     make(map[string]MockPage),
		redirects: make(map[string]string),
		raw:       make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/list/", mock.listHandler)
	mux.HandleFunc("/", mock.articleHandler)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockReadwise) URL() string {
	return m.server.URL
}

// BaseURL returns the API root to configure the client with.
func (m *MockReadwise) BaseURL() string {
	return m.server.URL + "/api/v3"
}

// ArticleURL returns an absolute URL for an article path on the mock server.
func (m *MockReadwise) ArticleURL(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockReadwise) Close() {
	m.server.Close()
}

// SetPage registers the page returned for cursor ("" for the first request).
func (m *MockReadwise) SetPage(cursor string, page MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[cursor] = page
}

// SetRawPage registers a raw body returned for cursor, bypassing encoding.
func (m *MockReadwise) SetRawPage(cursor, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[cursor] = body
}

// SetRedirect makes requests to path answer 301 to target.
func (m *MockReadwise) SetRedirect(path, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects[path] = target
}

// GetRequestCount returns the number of list requests made to the server.
func (m *MockReadwise) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetHeadCount returns the number of HEAD requests made to article paths.
func (m *MockReadwise) GetHeadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.HeadCount
}

// GetCursors returns the cursors received, in request order.
func (m *MockReadwise) GetCursors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Cursors...)
}

func (m *MockReadwise) listHandler(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("pageCursor")

	m.mu.Lock()
	m.RequestCount++
	m.Cursors = append(m.Cursors, cursor)
	m.LastRequestHeader = r.Header.Clone()
	page, exists := m.pages[cursor]
	raw, hasRaw := m.raw[cursor]
	m.mu.Unlock()

	if r.Header.Get("Authorization") == "" {
		http.Error(w, `{"detail": "Authentication credentials were not provided."}`, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if hasRaw {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(raw))
		return
	}

	if !exists {
		http.Error(w, `{"detail": "Invalid cursor."}`, http.StatusBadRequest)
		return
	}

	body := map[string]any{
		"count":          len(page.Results),
		"nextPageCursor": page.NextPageCursor,
		"results":        page.Results,
	}
	if page.Results == nil {
		body["results"] = []MockItem{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func (m *MockReadwise) articleHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	if r.Method == http.MethodHead {
		m.HeadCount++
	}
	target, redirect := m.redirects[r.URL.Path]
	m.mu.Unlock()

	if redirect {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}

// NewItem builds a MockItem with the given attribution and word count.
// Empty author or site are encoded as null.
func NewItem(author, site, sourceURL string, wordCount int, updated time.Time) MockItem {
	item := MockItem{
		Title:     Ptr(fmt.Sprintf("Article at %s", sourceURL)),
		SourceURL: sourceURL,
		WordCount: Ptr(wordCount),
		CreatedAt: updated.Add(-time.Hour).Format(time.RFC3339),
		UpdatedAt: updated.Format(time.RFC3339),
	}
	if author != "" {
		item.Author = Ptr(author)
	}
	if site != "" {
		item.SiteName = Ptr(site)
	}
	return item
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
