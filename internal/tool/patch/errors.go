package patch

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrPathRequired  = errors.New("path is required")
	ErrHunksRequired = errors.New("hunks cannot be empty")
	ErrFileMissing   = errors.New("file does not exist")
	ErrFileTooLarge  = errors.New("file too large")
	ErrIsDirectory   = errors.New("path is a directory")
)

// -- Error Types --

// InvalidHunkError is returned when a hunk has a bad range, exceeds the file,
// or overlaps an earlier hunk. The whole patch is rejected; nothing is written.
type InvalidHunkError struct {
	Index  int
	Reason string
}

func (e *InvalidHunkError) Error() string {
	return fmt.Sprintf("invalid hunk %d: %s", e.Index, e.Reason)
}

// InvalidHunk implements the behavioral interface for cross-package
// error classification.
func (e *InvalidHunkError) InvalidHunk() bool { return true }

type StatError struct {
	Path  string
	Cause error
}

func (e *StatError) Error() string {
	return fmt.Sprintf("failed to stat %s: %v", e.Path, e.Cause)
}
func (e *StatError) Unwrap() error { return e.Cause }

type ReadError struct {
	Path  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Cause)
}
func (e *ReadError) Unwrap() error { return e.Cause }

type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Cause)
}
func (e *WriteError) Unwrap() error { return e.Cause }

// IsInvalidHunk reports whether err is a hunk validation failure.
func IsInvalidHunk(err error) bool {
	var ih interface{ InvalidHunk() bool }
	return errors.As(err, &ih) && ih.InvalidHunk()
}
