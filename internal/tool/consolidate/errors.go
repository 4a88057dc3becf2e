package consolidate

import (
	"errors"
	"fmt"
)

var (
	ErrPathRequired = errors.New("canonical_path and source_path are required")
	ErrSamePath     = errors.New("canonical_path and source_path must differ")
	ErrFileMissing  = errors.New("file does not exist")
	ErrIsDirectory  = errors.New("path is a directory")
)

// LedgerError wraps failures reading or decoding a version ledger.
type LedgerError struct {
	Path  string
	Cause error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("consolidation ledger %q: %v", e.Path, e.Cause)
}

func (e *LedgerError) Unwrap() error { return e.Cause }

// IndexError wraps failures reading or decoding the consolidation index.
type IndexError struct {
	Path  string
	Cause error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("consolidation index %q: %v", e.Path, e.Cause)
}

func (e *IndexError) Unwrap() error { return e.Cause }

// ArchiveError wraps failures writing artifacts under the consolidation
// directory.
type ArchiveError struct {
	Path  string
	Cause error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("failed to write consolidation artifact %q: %v", e.Path, e.Cause)
}

func (e *ArchiveError) Unwrap() error { return e.Cause }
