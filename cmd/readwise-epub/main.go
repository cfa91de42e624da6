// Command readwise-epub turns the Readwise Reader reading list into EPUB
// files, one per author/site group or per chunk of loose articles.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/readwise-epub/internal/config"
	"github.com/Sternrassler/readwise-epub/pkg/canonical"
	"github.com/Sternrassler/readwise-epub/pkg/grouping"
	"github.com/Sternrassler/readwise-epub/pkg/logging"
	"github.com/Sternrassler/readwise-epub/pkg/metrics"
	"github.com/Sternrassler/readwise-epub/pkg/output"
	"github.com/Sternrassler/readwise-epub/pkg/pagination"
	"github.com/Sternrassler/readwise-epub/pkg/pipeline"
	"github.com/Sternrassler/readwise-epub/pkg/ratelimit"
	"github.com/Sternrassler/readwise-epub/pkg/readwise"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// errRunFailures is returned when at least one batch failed to render.
var errRunFailures = errors.New("some batches failed to render")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("readwise-epub failed")
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	debug      bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "readwise-epub",
		Short:         "Batch the Readwise Reader list into EPUB files",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}

	// Without a subcommand the full pipeline runs.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), opts.cfg, false)
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/readwise-epub/config.toml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd(opts), newPlanCmd(opts), newVersionCmd())
	return root
}

// load reads the configuration and sets up logging.
func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.debug {
		cfg.LogLevel = string(logging.LevelDebug)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	log.Debug().Str("config", cfg.String()).Msg("Configuration loaded")

	o.cfg = cfg
	return nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the reading list and render every batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), opts.cfg, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and group but do not invoke the renderer")
	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config, dryRun bool) error {
	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	clientCfg := readwise.DefaultConfig(cfg.ReaderToken)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.Location = cfg.Location
	client, err := readwise.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create readwise client: %w", err)
	}

	resolver := canonical.NewResolver(canonical.Config{
		Timeout:     cfg.ProbeTimeout,
		Concurrency: cfg.ProbeConcurrency,
	})

	var renderer output.Renderer
	if !dryRun {
		rendererCfg := output.DefaultPercollateConfig(cfg.OutputDir)
		rendererCfg.Command = cfg.RendererCommand
		rendererCfg.Author = cfg.RendererAuthor
		renderer = output.NewPercollate(rendererCfg)
	}

	p, err := pipeline.New(
		pagination.NewFetcher[readwise.Item](client, limiter),
		resolver,
		renderer,
		pipeline.Config{
			OutputDir: cfg.OutputDir,
			DumpPath:  cfg.DumpPath,
			Grouping:  grouping.Options{ChunkWords: cfg.ChunkWords},
			DryRun:    dryRun,
		},
	)
	if err != nil {
		return err
	}

	summary, runErr := p.Run(ctx)

	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", errRunFailures, summary.Failed, summary.Batches)
	}
	return nil
}

// newLimiter returns the shared Redis limiter when redis_url is set and a
// process-local one otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewLocal(cfg.RateRequests, cfg.RateWindow), func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", redisOpts.Addr).Msg("Using shared rate limiter")

	limiter := ratelimit.NewShared(
		redisClient,
		ratelimit.DefaultRedisKey,
		cfg.RateRequests,
		cfg.RateWindow,
		logging.NewLogger("ratelimit"),
	)
	return limiter, func() { redisClient.Close() }, nil
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var dumpPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the batches a dump file would produce",
		Long: "Reads a dump written by a previous run and prints each batch with the\n" +
			"file name it would get. URLs are not probed and nothing is rendered.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dumpPath == "" {
				dumpPath = opts.cfg.DumpPath
			}
			items, err := pipeline.LoadDump(dumpPath)
			if err != nil {
				return err
			}

			planned, err := pipeline.Plan(items, grouping.Options{ChunkWords: opts.cfg.ChunkWords}, opts.cfg.OutputDir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tTITLE\tKIND\tARTICLES\tWORDS")
			for _, p := range planned {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					p.Identity.Filename,
					p.Identity.Title,
					p.Batch.Kind,
					len(p.Batch.Items),
					p.Batch.WordCount(),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dumpPath, "dump", "", "dump file to plan from (default: dump_path)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "readwise-epub %s\n", version)
		},
	}
}
