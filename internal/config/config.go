// Package config holds process configuration for the tool host.
// Values come from environment variables (optionally via a .env file)
// merged over DefaultConfig(); the workspace root and allowlist are
// loaded once at startup and treated as read-only afterwards.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names understood by Load.
const (
	EnvWorkspaceRoot = "TOOLHOST_WORKSPACE_ROOT"
	EnvLedgerPath    = "TOOLHOST_LEDGER_PATH"
	EnvBindAddr      = "TOOLHOST_BIND_ADDR"
	EnvAllowlistPath = "TOOLHOST_ALLOWLIST_PATH"
	EnvLogLevel      = "TOOLHOST_LOG_LEVEL"
	EnvWorkers       = "TOOLHOST_WORKERS"
)

// Config holds all application configuration values.
type Config struct {
	// WorkspaceRoot is the directory tree all operations are confined to.
	WorkspaceRoot string

	// LedgerPath is the audit ledger file. Relative paths are resolved
	// against the workspace root.
	LedgerPath string

	// BindAddr is the HTTP listen address.
	BindAddr string

	// AllowlistPath is the TOML file holding pre-approved commands.
	AllowlistPath string

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string

	// Workers bounds the pool that runs blocking filesystem and
	// process work.
	Workers int

	Tools ToolsConfig
}

// ToolsConfig holds per-tool limits.
type ToolsConfig struct {
	// MaxFileSize caps file contents accepted by edit and patch. Default: 20MB.
	MaxFileSize int64

	// MaxCommandOutputSize caps captured stdout/stderr per stream. Default: 10MB.
	MaxCommandOutputSize int64

	// DefaultCommandTimeout applies when a request carries no timeout, in seconds.
	DefaultCommandTimeout int

	// GracefulShutdownMs is the interrupt-to-kill grace window on command timeout.
	GracefulShutdownMs int

	// MaxListResults caps directory listing entries.
	MaxListResults int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LedgerPath:    ".toolhost/ledger.jsonl",
		BindAddr:      "127.0.0.1:8742",
		AllowlistPath: ".toolhost/allowlist.toml",
		LogLevel:      "info",
		Workers:       8,
		Tools: ToolsConfig{
			MaxFileSize:           20 * 1024 * 1024,
			MaxCommandOutputSize:  10 * 1024 * 1024,
			DefaultCommandTimeout: 600,
			GracefulShutdownMs:    2000,
			MaxListResults:        50000,
		},
	}
}

// Load builds a Config from the environment merged over defaults.
// A .env file in the working directory is honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv(EnvWorkspaceRoot); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv(EnvLedgerPath); v != "" {
		cfg.LedgerPath = v
	}
	if v := os.Getenv(EnvBindAddr); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv(EnvAllowlistPath); v != "" {
		cfg.AllowlistPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &EnvParseError{Key: EnvWorkers, Value: v, Cause: err}
		}
		cfg.Workers = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
