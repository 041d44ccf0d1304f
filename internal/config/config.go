// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Result storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Run id length bounds.
const (
	MinRunIDLength     = 12
	MaxRunIDLength     = 64
	DefaultRunIDLength = 24
)

// Config holds the application configuration loaded from environment variables.
// It is built once in main and passed to every component constructor.
type Config struct {
	WebhookSecret string
	PipelinePath  string
	GitHubToken   string
	RepoURL       string
	ResultsDir    string

	ListenAddr      string
	WorkspaceRoot   string
	ResultBackend   string
	DBPath          string
	RunIDLength     int
	StatusContext   string
	GitHubAPIURL    string
	PublicURL       string
	LogLevel        slog.Level
	LogFormat       string
	ShutdownTimeout time.Duration
}

// required lists the variables whose absence at startup is fatal.
var required = []string{
	"BASICCI_WEBHOOK_SECRET",
	"BASICCI_PIPELINE_PATH",
	"BASICCI_GITHUB_TOKEN",
	"BASICCI_REPO_URL",
	"BASICCI_RESULTS_DIR",
}

// Load reads configuration from environment variables and returns a validated Config.
// BASICCI_WEBHOOK_SECRET, BASICCI_PIPELINE_PATH, BASICCI_GITHUB_TOKEN,
// BASICCI_REPO_URL and BASICCI_RESULTS_DIR are required. Optional variables with
// defaults: BASICCI_LISTEN_ADDR (127.0.0.1:8080), BASICCI_WORKSPACE_ROOT
// ($TMPDIR/basicci-workspaces), BASICCI_RESULT_BACKEND (file),
// BASICCI_DB_PATH (<results dir>/basicci.db), BASICCI_RUN_ID_LENGTH (24),
// BASICCI_STATUS_CONTEXT (basic-ci), BASICCI_GITHUB_API_URL (public GitHub),
// BASICCI_PUBLIC_URL (unset), BASICCI_LOG_LEVEL (info), BASICCI_LOG_FORMAT (text),
// BASICCI_SHUTDOWN_TIMEOUT (30s).
func Load() (*Config, error) {
	var missing []string
	values := make(map[string]string, len(required))
	for _, key := range required {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		WebhookSecret:   values["BASICCI_WEBHOOK_SECRET"],
		PipelinePath:    values["BASICCI_PIPELINE_PATH"],
		GitHubToken:     values["BASICCI_GITHUB_TOKEN"],
		RepoURL:         values["BASICCI_REPO_URL"],
		ResultsDir:      values["BASICCI_RESULTS_DIR"],
		ListenAddr:      "127.0.0.1:8080",
		WorkspaceRoot:   filepath.Join(os.TempDir(), "basicci-workspaces"),
		ResultBackend:   BackendFile,
		RunIDLength:     DefaultRunIDLength,
		StatusContext:   "basic-ci",
		LogLevel:        slog.LevelInfo,
		LogFormat:       "text",
		ShutdownTimeout: 30 * time.Second,
	}

	if v, ok := os.LookupEnv("BASICCI_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("BASICCI_WORKSPACE_ROOT"); ok && v != "" {
		cfg.WorkspaceRoot = v
	}

	if v, ok := os.LookupEnv("BASICCI_RESULT_BACKEND"); ok && v != "" {
		v = strings.ToLower(v)
		if v != BackendFile && v != BackendSQLite {
			return nil, fmt.Errorf("BASICCI_RESULT_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, v)
		}
		cfg.ResultBackend = v
	}

	cfg.DBPath = filepath.Join(cfg.ResultsDir, "basicci.db")
	if v, ok := os.LookupEnv("BASICCI_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("BASICCI_RUN_ID_LENGTH"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("BASICCI_RUN_ID_LENGTH has invalid integer %q: %w", v, err)
		}
		if n < MinRunIDLength || n > MaxRunIDLength {
			return nil, fmt.Errorf("BASICCI_RUN_ID_LENGTH must be within [%d,%d], got %d", MinRunIDLength, MaxRunIDLength, n)
		}
		cfg.RunIDLength = n
	}

	if v, ok := os.LookupEnv("BASICCI_STATUS_CONTEXT"); ok && v != "" {
		cfg.StatusContext = v
	}

	if v, ok := os.LookupEnv("BASICCI_GITHUB_API_URL"); ok && v != "" {
		cfg.GitHubAPIURL = v
	}

	if v, ok := os.LookupEnv("BASICCI_PUBLIC_URL"); ok && v != "" {
		cfg.PublicURL = strings.TrimRight(v, "/")
	}

	if v, ok := os.LookupEnv("BASICCI_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("BASICCI_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if v, ok := os.LookupEnv("BASICCI_LOG_FORMAT"); ok && v != "" {
		v = strings.ToLower(v)
		if v != "text" && v != "json" {
			return nil, fmt.Errorf("BASICCI_LOG_FORMAT must be \"text\" or \"json\", got %q", v)
		}
		cfg.LogFormat = v
	}

	if v, ok := os.LookupEnv("BASICCI_SHUTDOWN_TIMEOUT"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("BASICCI_SHUTDOWN_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.ShutdownTimeout = parsed
	}

	return cfg, nil
}

// DetailsURL returns the public link for a run, or "" when no public URL is set.
func (c *Config) DetailsURL(runID string) string {
	if c.PublicURL == "" {
		return ""
	}
	return c.PublicURL + "/api/v1/runs/" + runID
}

// NewLogger builds the process logger described by the configuration.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
