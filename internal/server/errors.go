package server

import (
	"errors"
	"fmt"

	"toolhost/internal/audit"
	"toolhost/internal/tool/allowlist"
	"toolhost/internal/tool/capability"
	"toolhost/internal/tool/consolidate"
	"toolhost/internal/tool/directory"
	"toolhost/internal/tool/file"
	"toolhost/internal/tool/patch"
	"toolhost/internal/tool/service/executor"
	"toolhost/internal/tool/service/path"
)

// DecodeError wraps a request body that did not match the endpoint's schema.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// errorKind classifies an error for the response message and the audit
// record. The original cause's message always travels alongside the kind.
func errorKind(err error) string {
	var spawnErr *executor.SpawnError
	var writeErr *audit.WriteError
	var decodeErr *DecodeError

	switch {
	case path.IsSandboxViolation(err):
		return "sandbox_violation"
	case allowlist.IsCommandNotAllowed(err):
		return "command_not_allowed"
	case errors.Is(err, executor.ErrTimeout):
		return "command_timeout"
	case errors.As(err, &spawnErr):
		return "process_spawn_failure"
	case patch.IsInvalidHunk(err):
		return "invalid_hunk"
	case errors.Is(err, file.ErrFileMissing),
		errors.Is(err, directory.ErrFileMissing),
		errors.Is(err, patch.ErrFileMissing),
		errors.Is(err, capability.ErrFileMissing),
		errors.Is(err, consolidate.ErrFileMissing):
		return "file_not_found"
	case errors.As(err, &writeErr), errors.Is(err, audit.ErrLedgerClosed):
		return "ledger_write_failure"
	case errors.As(err, &decodeErr):
		return "invalid_request"
	default:
		return "invalid_request"
	}
}

// errorMessage renders the failure body: kind plus original cause.
func errorMessage(err error) string {
	return fmt.Sprintf("%s: %s", errorKind(err), err.Error())
}
