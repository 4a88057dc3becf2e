package path

import (
	"errors"
	"fmt"
)

// -- Error Types --

// SandboxViolationError is returned when a path would leave the workspace root.
type SandboxViolationError struct {
	Path   string
	Reason string
}

func (e *SandboxViolationError) Error() string {
	return fmt.Sprintf("sandbox violation: %s (%s)", e.Path, e.Reason)
}

// SandboxViolation implements the behavioral interface for cross-package
// error classification.
func (e *SandboxViolationError) SandboxViolation() bool { return true }

// WorkspaceRootError is returned when the workspace root is invalid.
type WorkspaceRootError struct {
	Root  string
	Cause error
}

func (e *WorkspaceRootError) Error() string {
	return fmt.Sprintf("invalid workspace root %s: %v", e.Root, e.Cause)
}
func (e *WorkspaceRootError) Unwrap() error { return e.Cause }

// ResolveError is returned when canonicalisation of an existing path fails.
type ResolveError struct {
	Path  string
	Cause error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("failed to resolve path %s: %v", e.Path, e.Cause)
}
func (e *ResolveError) Unwrap() error { return e.Cause }

// -- Sentinels --

var (
	ErrWorkspaceRootNotSet = errors.New("workspace root not set")
	ErrNotADirectory       = errors.New("not a directory")
)

// IsSandboxViolation reports whether err is a sandbox violation of any shape.
func IsSandboxViolation(err error) bool {
	var sv interface{ SandboxViolation() bool }
	return errors.As(err, &sv) && sv.SandboxViolation()
}
