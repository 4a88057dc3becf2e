package allowlist

import (
	"errors"
	"fmt"
)

// CommandNotAllowedError is returned when no allowlist entry matches an
// invocation request.
type CommandNotAllowedError struct {
	Command string
	Reason  string
}

func (e *CommandNotAllowedError) Error() string {
	return fmt.Sprintf("command not allowed: %q (%s)", e.Command, e.Reason)
}

// CommandNotAllowed implements the behavioral interface for cross-package
// error classification.
func (e *CommandNotAllowedError) CommandNotAllowed() bool { return true }

// LoadError is returned when the allowlist file cannot be read or parsed.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load allowlist %s: %v", e.Path, e.Cause)
}
func (e *LoadError) Unwrap() error { return e.Cause }

// IsCommandNotAllowed reports whether err represents a rejected invocation.
func IsCommandNotAllowed(err error) bool {
	var cn interface{ CommandNotAllowed() bool }
	return errors.As(err, &cn) && cn.CommandNotAllowed()
}
