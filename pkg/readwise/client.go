// Package readwise provides a single-attempt client for the Readwise Reader
// list API.
package readwise

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for list API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readwise_requests_total",
		Help: "Total Readwise list requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "readwise_request_duration_seconds",
		Help:    "Readwise list request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readwise_errors_total",
		Help: "Total Readwise list errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad token, bad cursor).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not a valid list page.
	ErrorClassDecode ErrorClass = "decode"
)

// DefaultBaseURL is the Reader API root.
const DefaultBaseURL = "https://readwise.io/api/v3"

// Config holds the client configuration.
type Config struct {
	// Token is the Reader access token (REQUIRED).
	Token string

	// BaseURL of the API, without the trailing /list/ path.
	BaseURL string

	// Location filters the list (e.g. "new", "later", "archive").
	Location string

	// Timeout for a single request.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used against the public API.
func DefaultConfig(token string) Config {
	return Config{
		Token:    token,
		BaseURL:  DefaultBaseURL,
		Location: "new",
		Timeout:  30 * time.Second,
	}
}

// Client fetches pages of the Reader list. It never retries.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new list client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "readwise-client").Logger(),
	}, nil
}

// FetchPage requests one page of the list. A nil cursor requests the first
// page; otherwise the cursor is forwarded verbatim. It returns the page's
// items and the next cursor (nil on the last page).
func (c *Client) FetchPage(ctx context.Context, cursor *string) ([]Item, *string, error) {
	page, err := c.ListPage(ctx, cursor)
	if err != nil {
		return nil, nil, err
	}
	return page.Results, page.NextPageCursor, nil
}

// ListPage requests one page and returns the decoded, validated response.
func (c *Client) ListPage(ctx context.Context, cursor *string) (*Page, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(cursor), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().
		Bool("has_cursor", cursor != nil).
		Msg("Requesting list page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Readwise request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	page, err := DecodePage(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode page",
			Err:        err,
		}
	}

	c.logger.Debug().
		Int("count", page.Count).
		Int("results", len(page.Results)).
		Bool("last_page", page.NextPageCursor == nil).
		Msg("Received list page")

	return page, nil
}

// DecodePage parses and validates a list response body.
func DecodePage(body []byte) (*Page, error) {
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	if err := page.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}
	return &page, nil
}

// listURL builds the list endpoint URL for the given cursor.
func (c *Client) listURL(cursor *string) string {
	query := url.Values{}
	if c.config.Location != "" {
		query.Set("location", c.config.Location)
	}
	if cursor != nil {
		query.Set("pageCursor", *cursor)
	}

	u := c.config.BaseURL + "/list/"
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
