package config

import (
	"fmt"
	"strings"
)

// Validate checks config values for correctness.
// Returns an error describing every invalid value at once.
func (c *Config) Validate() error {
	var errs []string

	if c.WorkspaceRoot == "" {
		errs = append(errs, EnvWorkspaceRoot+" is required")
	}
	if c.LedgerPath == "" {
		errs = append(errs, "ledger path must not be empty")
	}
	if c.BindAddr == "" {
		errs = append(errs, "bind address must not be empty")
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be >= 1")
	}
	if c.Tools.MaxFileSize < 1 {
		errs = append(errs, "tools.max_file_size must be >= 1")
	}
	if c.Tools.MaxCommandOutputSize < 1 {
		errs = append(errs, "tools.max_command_output_size must be >= 1")
	}
	if c.Tools.DefaultCommandTimeout < 1 {
		errs = append(errs, "tools.default_command_timeout must be >= 1")
	}
	if c.Tools.GracefulShutdownMs < 0 {
		errs = append(errs, "tools.graceful_shutdown_ms must be >= 0")
	}
	if c.Tools.MaxListResults < 1 {
		errs = append(errs, "tools.max_list_results must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
