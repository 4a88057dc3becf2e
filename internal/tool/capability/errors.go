package capability

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrPathRequired = errors.New("path is required")
	ErrFileMissing  = errors.New("file does not exist")
)

// -- Error Types --

type ExtractError struct {
	Path  string
	Cause error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract capabilities from %s: %v", e.Path, e.Cause)
}
func (e *ExtractError) Unwrap() error { return e.Cause }
