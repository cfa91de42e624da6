package readwise

import (
	"errors"
	"fmt"
	"time"
)

// Page validation errors.
var (
	// ErrEmptySourceURL is returned when a list item has no source_url.
	ErrEmptySourceURL = errors.New("source_url is required")

	// ErrMissingTimestamp is returned when created_at or updated_at is absent.
	ErrMissingTimestamp = errors.New("created_at and updated_at are required")

	// ErrNegativeWordCount is returned when word_count is below zero.
	ErrNegativeWordCount = errors.New("word_count must be non-negative")
)

// Page is one response of the Reader list endpoint.
type Page struct {
	Count int `json:"count"`

	// NextPageCursor is nil on the last page. A non-nil cursor must be sent
	// back verbatim to obtain the next page.
	NextPageCursor *string `json:"nextPageCursor"`

	Results []Item `json:"results"`
}

// Item is a single saved document in the reading list.
type Item struct {
	Title    *string `json:"title"`
	Author   *string `json:"author"`
	SiteName *string `json:"site_name"`

	// SourceURL is rewritten once by URL canonicalization.
	SourceURL string `json:"source_url"`

	ImageURL *string `json:"image_url"`
	Summary  *string `json:"summary"`
	Content  *string `json:"content"`

	// WordCount is 0 when the API sends null or omits the field.
	WordCount int `json:"word_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields the batching pipeline depends on.
func (i *Item) Validate() error {
	if i.SourceURL == "" {
		return ErrEmptySourceURL
	}
	if i.CreatedAt.IsZero() || i.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: %s", ErrMissingTimestamp, i.SourceURL)
	}
	if i.WordCount < 0 {
		return fmt.Errorf("%w: %s (got %d)", ErrNegativeWordCount, i.SourceURL, i.WordCount)
	}
	return nil
}

// Validate checks every item on the page.
func (p *Page) Validate() error {
	for idx := range p.Results {
		if err := p.Results[idx].Validate(); err != nil {
			return fmt.Errorf("result[%d]: %w", idx, err)
		}
	}
	return nil
}

// Cursor returns the continuation cursor and whether another page exists.
func (p *Page) Cursor() (string, bool) {
	if p.NextPageCursor == nil {
		return "", false
	}
	return *p.NextPageCursor, true
}

// StringValue dereferences an optional text field, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
