package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/readwise-epub/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageFetcher is the interface a cursor-paginated client must implement.
type PageFetcher[T any] interface {
	// FetchPage fetches the page at cursor (nil for the first page) and
	// returns its results plus the next cursor (nil after the last page).
	FetchPage(ctx context.Context, cursor *string) (results []T, next *string, err error)
}

// Fetcher walks all pages of a PageFetcher sequentially.
type Fetcher[T any] struct {
	pages   PageFetcher[T]
	limiter ratelimit.Limiter
	logger  zerolog.Logger
}

// NewFetcher creates a new sequential fetcher.
func NewFetcher[T any](pages PageFetcher[T], limiter ratelimit.Limiter) *Fetcher[T] {
	if limiter == nil {
		limiter = ratelimit.NewLocal(ratelimit.DefaultRequests, ratelimit.DefaultWindow)
	}
	return &Fetcher[T]{
		pages:   pages,
		limiter: limiter,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll fetches every page and returns all results in page order.
// The accumulator is local to the call; a failed walk returns no results.
func (f *Fetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	var (
		acc    []T
		cursor *string
		page   int
	)

	for {
		page++

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		results, next, err := f.pages.FetchPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		acc = append(acc, results...)
		cursor = next

		f.logger.Debug().
			Int("page", page).
			Int("results", len(results)).
			Int("total", len(acc)).
			Bool("more", cursor != nil).
			Msg("Fetched page")

		if cursor == nil {
			break
		}
	}

	f.logger.Info().
		Int("pages", page).
		Int("items", len(acc)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return acc, nil
}
