// Package pipeline runs the batching pipeline end to end: fetch the reading
// list, canonicalize URLs, group items into batches, then name and render
// each batch in turn.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/readwise-epub/pkg/canonical"
	"github.com/Sternrassler/readwise-epub/pkg/grouping"
	"github.com/Sternrassler/readwise-epub/pkg/output"
	"github.com/Sternrassler/readwise-epub/pkg/readwise"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source returns the complete reading list.
type Source interface {
	FetchAll(ctx context.Context) ([]readwise.Item, error)
}

// Canonicalizer rewrites item URLs in place.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, items []readwise.Item) canonical.Stats
}

// Config holds pipeline settings.
type Config struct {
	// OutputDir receives the rendered files.
	OutputDir string

	// DumpPath receives the JSON dump of all fetched items; empty disables it.
	DumpPath string

	// Grouping options.
	Grouping grouping.Options

	// DryRun names batches without invoking the renderer.
	DryRun bool
}

// DefaultConfig returns the stock pipeline settings.
func DefaultConfig() Config {
	return Config{
		OutputDir: "epubs",
		DumpPath:  "all_uris.json",
		Grouping:  grouping.DefaultOptions(),
	}
}

// Planned is a batch together with the identity it was given.
type Planned struct {
	Batch    grouping.Batch
	Identity output.Identity
}

// Summary reports what a run did.
type Summary struct {
	Fetched  int
	Filtered int
	Probes   canonical.Stats
	Batches  int
	Rendered int
	Failed   int
	Duration time.Duration
}

// Pipeline wires the stages together.
type Pipeline struct {
	source   Source
	resolver Canonicalizer
	renderer output.Renderer
	config   Config
	logger   zerolog.Logger
}

// New creates a pipeline.
func New(source Source, resolver Canonicalizer, renderer output.Renderer, cfg Config) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if resolver == nil {
		return nil, errors.New("canonicalizer is required")
	}
	if renderer == nil && !cfg.DryRun {
		return nil, errors.New("renderer is required unless dry run")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "epubs"
	}

	return &Pipeline{
		source:   source,
		resolver: resolver,
		renderer: renderer,
		config:   cfg,
		logger:   log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Run executes the whole pipeline. Fetch and dump failures abort the run;
// render failures are logged and counted and the next batch is processed.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	items, err := p.source.FetchAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch reading list: %w", err)
	}
	summary.Fetched = len(items)

	if p.config.DumpPath != "" {
		if err := WriteDump(p.config.DumpPath, items); err != nil {
			return summary, err
		}
		p.logger.Debug().Str("path", p.config.DumpPath).Msg("Wrote item dump")
	}

	items = canonical.FilterMailto(items)
	summary.Filtered = summary.Fetched - len(items)
	grouping.SortByUpdated(items)

	summary.Probes = p.resolver.Canonicalize(ctx, items)

	batches := grouping.Group(items, p.config.Grouping)
	summary.Batches = len(batches)

	if err := output.EnsureDir(p.config.OutputDir); err != nil {
		return summary, err
	}

	p.logger.Info().
		Int("batches", len(batches)).
		Int("filtered", summary.Filtered).
		Msg("Creating groups of articles")

	namer := output.NewNamer(p.config.OutputDir)
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		id, err := namer.Name(batch.Name)
		if err != nil {
			return summary, fmt.Errorf("name batch %q: %w", batch.Name, err)
		}

		p.logger.Info().
			Str("file", id.Filename).
			Str("kind", string(batch.Kind)).
			Int("articles", len(batch.Items)).
			Int("words", batch.WordCount()).
			Msg("Creating output")

		if p.config.DryRun {
			continue
		}

		if err := p.renderer.Render(ctx, id, batch.URLs()); err != nil {
			summary.Failed++
			p.logger.Error().
				Err(err).
				Str("batch", batch.Name).
				Str("file", id.Filename).
				Msg("Renderer failed")
			continue
		}
		summary.Rendered++
	}

	summary.Duration = time.Since(start)
	p.logger.Info().
		Int("fetched", summary.Fetched).
		Int("batches", summary.Batches).
		Int("rendered", summary.Rendered).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Run complete")

	return summary, nil
}

// Plan filters, sorts and groups items and assigns identities against
// outputDir, without probing URLs or rendering.
func Plan(items []readwise.Item, opts grouping.Options, outputDir string) ([]Planned, error) {
	filtered := canonical.FilterMailto(items)
	batches := grouping.Group(filtered, opts)

	namer := output.NewNamer(outputDir)
	planned := make([]Planned, 0, len(batches))
	for _, batch := range batches {
		id, err := namer.Name(batch.Name)
		if err != nil {
			return nil, fmt.Errorf("name batch %q: %w", batch.Name, err)
		}
		planned = append(planned, Planned{Batch: batch, Identity: id})
	}
	return planned, nil
}
