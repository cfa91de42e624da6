package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for renderer invocations.
var (
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readwise_renders_total",
		Help: "Total renderer invocations by result",
	}, []string{"result"})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "readwise_render_duration_seconds",
		Help:    "Renderer run time in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)

// Renderer turns an ordered list of article URLs into one output file.
type Renderer interface {
	Render(ctx context.Context, id Identity, urls []string) error
}

// RenderError reports a renderer that could not be started or exited
// unsuccessfully.
type RenderError struct {
	Filename string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("render %s: exit status %d", e.Filename, e.ExitCode)
	}
	return fmt.Sprintf("render %s: %v", e.Filename, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// PercollateConfig configures the percollate invocation.
type PercollateConfig struct {
	// Command is the executable name or path (percollate.cmd on Windows).
	Command string

	// Author is written into every output's metadata.
	Author string

	// Dir is the working directory the files are written to.
	Dir string

	// Stdout and Stderr receive the renderer's output (default: process streams).
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultPercollateConfig returns the stock invocation writing into dir.
func DefaultPercollateConfig(dir string) PercollateConfig {
	return PercollateConfig{
		Command: "percollate",
		Author:  "readwise",
		Dir:     dir,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Percollate renders EPUB files with the percollate CLI.
type Percollate struct {
	config PercollateConfig
	logger zerolog.Logger
}

// NewPercollate creates a percollate renderer.
func NewPercollate(cfg PercollateConfig) *Percollate {
	if cfg.Command == "" {
		cfg.Command = "percollate"
	}
	if cfg.Author == "" {
		cfg.Author = "readwise"
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Percollate{
		config: cfg,
		logger: log.With().Str("component", "output").Logger(),
	}
}

// Args returns the renderer arguments for one batch.
func (p *Percollate) Args(id Identity, urls []string) []string {
	args := []string{
		"epub",
		"--output", id.Filename,
		"--title", id.Title,
		"--author", p.config.Author,
	}
	return append(args, urls...)
}

// Render implements Renderer. Stdin is empty; stdout and stderr are forwarded.
func (p *Percollate) Render(ctx context.Context, id Identity, urls []string) error {
	start := time.Now()
	defer func() {
		renderDuration.Observe(time.Since(start).Seconds())
	}()

	cmd := exec.CommandContext(ctx, p.config.Command, p.Args(id, urls)...)
	cmd.Dir = p.config.Dir
	cmd.Stdin = nil
	cmd.Stdout = p.config.Stdout
	cmd.Stderr = p.config.Stderr

	p.logger.Debug().
		Str("command", p.config.Command).
		Str("file", id.Filename).
		Int("articles", len(urls)).
		Msg("Starting renderer")

	if err := cmd.Run(); err != nil {
		rendersTotal.WithLabelValues("failed").Inc()
		renderErr := &RenderError{Filename: id.Filename, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			renderErr.ExitCode = exitErr.ExitCode()
		}
		return renderErr
	}

	rendersTotal.WithLabelValues("ok").Inc()
	return nil
}

// EnsureDir creates the output directory if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
