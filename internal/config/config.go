// Package config loads the readwise-epub configuration from the environment,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sternrassler/readwise-epub/pkg/logging"
)

// EnvPrefix is prepended to every environment variable,
// e.g. READWISE_EPUB_READER_TOKEN.
const EnvPrefix = "READWISE_EPUB"

// AppName names the config directory.
const AppName = "readwise-epub"

// Configuration validation errors.
var (
	ErrMissingToken        = errors.New("reader_token is required (set READWISE_EPUB_READER_TOKEN or reader_token in config.toml)")
	ErrMissingOutputDir    = errors.New("output_dir is required")
	ErrInvalidChunkWords   = errors.New("chunk_words must be at least 1")
	ErrInvalidRateRequests = errors.New("rate_requests must be at least 1")
	ErrInvalidRateWindow   = errors.New("rate_window must be positive")
	ErrInvalidProbeTimeout = errors.New("probe_timeout must be positive")
	ErrInvalidConcurrency  = errors.New("probe_concurrency must be at least 1")
	ErrMissingRenderer     = errors.New("renderer_command is required")
	ErrInvalidLogLevel     = errors.New("log_level must be one of: debug, info, warn, error")
)

// Config is the complete application configuration.
type Config struct {
	ReaderToken string `mapstructure:"reader_token"`
	BaseURL     string `mapstructure:"base_url"`
	Location    string `mapstructure:"location"`

	OutputDir string `mapstructure:"output_dir"`
	DumpPath  string `mapstructure:"dump_path"`

	ChunkWords   int           `mapstructure:"chunk_words"`
	RateRequests int           `mapstructure:"rate_requests"`
	RateWindow   time.Duration `mapstructure:"rate_window"`

	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	ProbeConcurrency int           `mapstructure:"probe_concurrency"`

	RendererCommand string `mapstructure:"renderer_command"`
	RendererAuthor  string `mapstructure:"renderer_author"`

	// RedisURL enables the shared rate limiter when set.
	RedisURL string `mapstructure:"redis_url"`

	// MetricsFile receives a Prometheus textfile at the end of a run when set.
	MetricsFile string `mapstructure:"metrics_file"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// defaults for every key except reader_token.
var defaults = map[string]any{
	"reader_token":      "",
	"base_url":          "https://readwise.io/api/v3",
	"location":          "new",
	"output_dir":        "epubs",
	"dump_path":         "all_uris.json",
	"chunk_words":       8000,
	"rate_requests":     20,
	"rate_window":       "60s",
	"probe_timeout":     "30s",
	"probe_concurrency": 1,
	"renderer_command":  "percollate",
	"renderer_author":   "readwise",
	"redis_url":         "",
	"metrics_file":      "",
	"log_level":         "info",
	"log_pretty":        true,
}

// DefaultConfigDir returns the directory searched for config.toml,
// e.g. ~/.config/readwise-epub.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName)
}

// Load reads .env, the environment and the config file. An explicit
// configFile must exist; otherwise config.toml in DefaultConfigDir is
// optional.
func Load(configFile string) (*Config, error) {
	var searchDirs []string
	if dir := DefaultConfigDir(); dir != "" {
		searchDirs = append(searchDirs, dir)
	}
	return load(configFile, searchDirs)
}

func load(configFile string, searchDirs []string) (*Config, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if len(searchDirs) > 0 {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ReaderToken == "" {
		return ErrMissingToken
	}

	if c.OutputDir == "" {
		return ErrMissingOutputDir
	}

	if c.ChunkWords < 1 {
		return ErrInvalidChunkWords
	}

	if c.RateRequests < 1 {
		return ErrInvalidRateRequests
	}

	if c.RateWindow <= 0 {
		return ErrInvalidRateWindow
	}

	if c.ProbeTimeout <= 0 {
		return ErrInvalidProbeTimeout
	}

	if c.ProbeConcurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.RendererCommand == "" {
		return ErrMissingRenderer
	}

	if _, ok := logging.ParseLevelName(c.LogLevel); !ok {
		return ErrInvalidLogLevel
	}

	return nil
}

// String returns a representation of the config without the token.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Location: %s, OutputDir: %s, ChunkWords: %d, Rate: %d/%s, SharedLimiter: %t}",
		c.Location,
		c.OutputDir,
		c.ChunkWords,
		c.RateRequests,
		c.RateWindow,
		c.RedisURL != "",
	)
}
