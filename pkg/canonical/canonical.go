// Package canonical resolves article URLs to the address they finally
// redirect to, and drops items that cannot be rendered as articles.
package canonical

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/readwise-epub/pkg/readwise"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Probe results.
const (
	ResultRedirected = "redirected"
	ResultUnchanged  = "unchanged"
	ResultFailed     = "failed"
)

var probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "readwise_probes_total",
	Help: "Total redirect probes by result",
}, []string{"result"})

// MailtoScheme marks newsletter items that only exist as e-mails.
const MailtoScheme = "mailto:"

// IsMailto reports whether a source URL uses the mailto scheme.
func IsMailto(sourceURL string) bool {
	return len(sourceURL) >= len(MailtoScheme) && strings.EqualFold(sourceURL[:len(MailtoScheme)], MailtoScheme)
}

// FilterMailto returns the items whose source URL is not a mailto link,
// preserving order.
func FilterMailto(items []readwise.Item) []readwise.Item {
	kept := make([]readwise.Item, 0, len(items))
	for _, item := range items {
		if IsMailto(item.SourceURL) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// Config holds resolver configuration.
type Config struct {
	// Timeout per HEAD probe.
	Timeout time.Duration

	// Concurrency is the number of probes in flight. 1 probes strictly in order.
	Concurrency int
}

// DefaultConfig returns sequential probing with a 30s timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		Concurrency: 1,
	}
}

// Stats counts probe outcomes of one Canonicalize call.
type Stats struct {
	Redirected int
	Unchanged  int
	Failed     int
}

// Resolver rewrites source URLs to their redirect targets.
type Resolver struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Resolver{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "canonical").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (r *Resolver) SetHTTPClient(client *http.Client) {
	r.httpClient = client
}

// Canonicalize probes every item and rewrites SourceURL in place when the
// probe ends on a different URL. Probe failures leave the URL unchanged.
// Items are expected to be mailto-free already; mailto items are skipped.
func (r *Resolver) Canonicalize(ctx context.Context, items []readwise.Item) Stats {
	results := make([]string, len(items))

	if r.config.Concurrency == 1 {
		for i := range items {
			results[i] = r.resolve(ctx, &items[i])
		}
	} else {
		r.resolveParallel(ctx, items, results)
	}

	var stats Stats
	for _, res := range results {
		switch res {
		case ResultRedirected:
			stats.Redirected++
		case ResultUnchanged:
			stats.Unchanged++
		case ResultFailed:
			stats.Failed++
		}
	}

	r.logger.Info().
		Int("redirected", stats.Redirected).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.Failed).
		Msg("Canonicalization complete")

	return stats
}

// resolveParallel distributes item indexes over a bounded worker pool. Each
// index is handled by exactly one worker.
func (r *Resolver) resolveParallel(ctx context.Context, items []readwise.Item, results []string) {
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				results[idx] = r.resolve(ctx, &items[idx])
			}
		}()
	}

	for i := range items {
		queue <- i
	}
	close(queue)
	wg.Wait()
}

// resolve probes a single item and rewrites its URL when redirected.
func (r *Resolver) resolve(ctx context.Context, item *readwise.Item) string {
	original := item.SourceURL
	if IsMailto(original) {
		return ""
	}

	final, err := r.Probe(ctx, original)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("url", original).
			Msg("Failed to HEAD")
		probesTotal.WithLabelValues(ResultFailed).Inc()
		return ResultFailed
	}

	if final == original {
		r.logger.Debug().Str("url", original).Msg("URL is canonical")
		probesTotal.WithLabelValues(ResultUnchanged).Inc()
		return ResultUnchanged
	}

	item.SourceURL = final
	r.logger.Info().
		Str("from", original).
		Str("to", final).
		Msg("Redirected")
	probesTotal.WithLabelValues(ResultRedirected).Inc()
	return ResultRedirected
}

// Probe sends a HEAD request, following redirects, and returns the URL of
// the final response. Any response counts as success whatever its status.
func (r *Resolver) Probe(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	// No redirect was followed: keep the original spelling of the URL.
	if resp.Request == nil || resp.Request == req {
		return rawURL, nil
	}
	return resp.Request.URL.String(), nil
}
