package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("READWISE_EPUB_READER_TOKEN", "env-token")

	cfg, err := load("", []string{t.TempDir()})
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.ReaderToken != "env-token" {
		t.Errorf("ReaderToken = %q", cfg.ReaderToken)
	}
	if cfg.ChunkWords != 8000 {
		t.Errorf("ChunkWords = %d, want 8000", cfg.ChunkWords)
	}
	if cfg.RateRequests != 20 || cfg.RateWindow != 60*time.Second {
		t.Errorf("rate = %d/%v, want 20/60s", cfg.RateRequests, cfg.RateWindow)
	}
	if cfg.OutputDir != "epubs" || cfg.DumpPath != "all_uris.json" {
		t.Errorf("paths = %q, %q", cfg.OutputDir, cfg.DumpPath)
	}
	if cfg.RendererCommand != "percollate" || cfg.RendererAuthor != "readwise" {
		t.Errorf("renderer = %q by %q", cfg.RendererCommand, cfg.RendererAuthor)
	}
	if cfg.ProbeConcurrency != 1 {
		t.Errorf("ProbeConcurrency = %d, want 1", cfg.ProbeConcurrency)
	}
}

func TestLoad_ConfigFileInSearchDir(t *testing.T) {
	t.Setenv("READWISE_EPUB_READER_TOKEN", "")
	dir := t.TempDir()
	writeConfig(t, dir, `
reader_token = "file-token"
chunk_words = 4000
rate_window = "30s"
location = "later"
`)

	cfg, err := load("", []string{dir})
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.ReaderToken != "file-token" {
		t.Errorf("ReaderToken = %q", cfg.ReaderToken)
	}
	if cfg.ChunkWords != 4000 {
		t.Errorf("ChunkWords = %d", cfg.ChunkWords)
	}
	if cfg.RateWindow != 30*time.Second {
		t.Errorf("RateWindow = %v", cfg.RateWindow)
	}
	if cfg.Location != "later" {
		t.Errorf("Location = %q", cfg.Location)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `reader_token = "file-token"`)
	t.Setenv("READWISE_EPUB_READER_TOKEN", "env-token")
	t.Setenv("READWISE_EPUB_CHUNK_WORDS", "1234")

	cfg, err := load(path, nil)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.ReaderToken != "env-token" {
		t.Errorf("ReaderToken = %q, want env-token", cfg.ReaderToken)
	}
	if cfg.ChunkWords != 1234 {
		t.Errorf("ChunkWords = %d, want 1234", cfg.ChunkWords)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("READWISE_EPUB_READER_TOKEN", "")

	_, err := load("", []string{t.TempDir()})
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("load() error = %v, want ErrMissingToken", err)
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Setenv("READWISE_EPUB_READER_TOKEN", "t")

	_, err := load(filepath.Join(t.TempDir(), "nope.toml"), nil)
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("load() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ReaderToken:      "t",
			OutputDir:        "epubs",
			ChunkWords:       8000,
			RateRequests:     20,
			RateWindow:       time.Minute,
			ProbeTimeout:     time.Second,
			ProbeConcurrency: 1,
			RendererCommand:  "percollate",
			LogLevel:         "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"no token", func(c *Config) { c.ReaderToken = "" }, ErrMissingToken},
		{"no output dir", func(c *Config) { c.OutputDir = "" }, ErrMissingOutputDir},
		{"zero chunk", func(c *Config) { c.ChunkWords = 0 }, ErrInvalidChunkWords},
		{"zero rate", func(c *Config) { c.RateRequests = 0 }, ErrInvalidRateRequests},
		{"zero window", func(c *Config) { c.RateWindow = 0 }, ErrInvalidRateWindow},
		{"zero probe timeout", func(c *Config) { c.ProbeTimeout = 0 }, ErrInvalidProbeTimeout},
		{"zero concurrency", func(c *Config) { c.ProbeConcurrency = 0 }, ErrInvalidConcurrency},
		{"no renderer", func(c *Config) { c.RendererCommand = "" }, ErrMissingRenderer},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestString_HidesToken(t *testing.T) {
	cfg := Config{ReaderToken: "super-secret", OutputDir: "epubs"}
	if strings.Contains(cfg.String(), "super-secret") {
		t.Errorf("String() leaks token: %s", cfg.String())
	}
}
