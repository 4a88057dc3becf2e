package directory

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrFileMissing   = errors.New("file or path does not exist")
	ErrNotADirectory = errors.New("not a directory")
)

// -- Error Types --

type ListDirError struct {
	Path  string
	Cause error
}

func (e *ListDirError) Error() string {
	return fmt.Sprintf("failed to list directory %s: %v", e.Path, e.Cause)
}
func (e *ListDirError) Unwrap() error { return e.Cause }
