package audit

import (
	"errors"
	"fmt"
)

var ErrLedgerClosed = errors.New("audit ledger is closed")

// WriteError wraps a failed ledger append. Callers treat it as fatal for the
// request being audited.
type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to append audit record to %q: %v", e.Path, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }
