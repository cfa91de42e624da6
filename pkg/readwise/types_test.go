package readwise

import (
	"errors"
	"testing"
	"time"
)

func TestDecodePage(t *testing.T) {
	body := []byte(`{
		"count": 2,
		"nextPageCursor": "01abc",
		"results": [
			{
				"title": "First",
				"author": "Ann",
				"site_name": null,
				"source_url": "https://example.com/1",
				"word_count": null,
				"created_at": "2024-01-02T09:00:00+02:00",
				"updated_at": "2024-01-02T10:00:00+02:00"
			},
			{
				"source_url": "mailto:reader@example.com",
				"word_count": 420,
				"created_at": "2024-01-03T09:00:00Z",
				"updated_at": "2024-01-03T10:00:00Z"
			}
		]
	}`)

	page, err := DecodePage(body)
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	cursor, ok := page.Cursor()
	if !ok || cursor != "01abc" {
		t.Errorf("Cursor() = %q, %v", cursor, ok)
	}
	if page.Count != 2 || len(page.Results) != 2 {
		t.Fatalf("count = %d, results = %d", page.Count, len(page.Results))
	}

	first := page.Results[0]
	if first.WordCount != 0 {
		t.Errorf("null word_count decoded as %d, want 0", first.WordCount)
	}
	if StringValue(first.Author) != "Ann" || first.SiteName != nil {
		t.Errorf("author = %v, site = %v", first.Author, first.SiteName)
	}
	if _, offset := first.UpdatedAt.Zone(); offset != 2*60*60 {
		t.Errorf("updated_at offset = %d, want +02:00 preserved", offset)
	}
	if page.Results[1].WordCount != 420 {
		t.Errorf("word_count = %d, want 420", page.Results[1].WordCount)
	}
}

func TestDecodePage_LastPage(t *testing.T) {
	page, err := DecodePage([]byte(`{"count":0,"nextPageCursor":null,"results":[]}`))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}
	if _, ok := page.Cursor(); ok {
		t.Error("expected no cursor on last page")
	}
}

func TestDecodePage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"malformed", `{"count":`, ErrInvalidPage},
		{"bad timestamp", `{"results":[{"source_url":"https://a","created_at":"yesterday","updated_at":"2024-01-01T00:00:00Z"}]}`, ErrInvalidPage},
		{"missing updated_at", `{"results":[{"source_url":"https://a","created_at":"2024-01-01T00:00:00Z"}]}`, ErrMissingTimestamp},
		{"missing source_url", `{"results":[{"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}]}`, ErrEmptySourceURL},
		{"negative word count", `{"results":[{"source_url":"https://a","word_count":-1,"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}]}`, ErrNegativeWordCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePage([]byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodePage() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "status only",
			err:      &APIError{StatusCode: 401, ErrorClass: ErrorClassClient, Message: "401 Unauthorized"},
			expected: "readwise client error (status 401): 401 Unauthorized",
		},
		{
			name:     "wrapped",
			err:      &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: errors.New("connection refused")},
			expected: "readwise network error (status 0): request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestItemValidate(t *testing.T) {
	now := time.Now()
	item := Item{SourceURL: "https://a", CreatedAt: now, UpdatedAt: now}
	if err := item.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
