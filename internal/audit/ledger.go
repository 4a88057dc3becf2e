// Package audit appends one structured record per tool invocation to a
// durable log file. Appends are serialized through a single writer goroutine
// so concurrent requests never interleave mid-line, and an exclusive file
// lock is held for each append so external writers to the same file cannot
// corrupt it either. A failed append fails the request being audited.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Record is one audit ledger entry, written as a single JSON line.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	RequestID string         `json:"request_id"`
	Details   map[string]any `json:"details"`
}

type appendRequest struct {
	record Record
	reply  chan error
}

// Ledger is the append-only audit log. All appends flow through one writer
// goroutine started by NewLedger.
type Ledger struct {
	path     string
	requests chan appendRequest
	quit     chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once
	now       func() time.Time
}

// NewLedger creates the ledger file's parent directory if needed and starts
// the writer goroutine.
func NewLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &WriteError{Path: path, Cause: err}
	}

	l := &Ledger{
		path:     path,
		requests: make(chan appendRequest),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		now:      time.Now,
	}
	go l.writer()
	return l, nil
}

// Append records one tool invocation and blocks until the record is durably
// written or the context is cancelled.
func (l *Ledger) Append(ctx context.Context, action, requestID string, details map[string]any) error {
	req := appendRequest{
		record: Record{
			Timestamp: l.now().UTC(),
			Action:    action,
			RequestID: requestID,
			Details:   details,
		},
		reply: make(chan error, 1),
	}

	select {
	case l.requests <- req:
	case <-l.quit:
		return ErrLedgerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer after draining already queued appends.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() { close(l.quit) })
	<-l.stopped
	return nil
}

func (l *Ledger) writer() {
	for {
		select {
		case req := <-l.requests:
			req.reply <- l.write(req.record)
		case <-l.quit:
			for {
				select {
				case req := <-l.requests:
					req.reply <- l.write(req.record)
				default:
					close(l.stopped)
					return
				}
			}
		}
	}
}

// write appends one JSON line under an exclusive file lock. The lock is
// released unconditionally, write failure included.
func (l *Ledger) write(record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Path: l.path, Cause: err}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return &WriteError{Path: l.path, Cause: err}
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return &WriteError{Path: l.path, Cause: err}
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	if _, err := f.Write(append(data, '\n')); err != nil {
		return &WriteError{Path: l.path, Cause: err}
	}
	if err := f.Sync(); err != nil {
		return &WriteError{Path: l.path, Cause: err}
	}
	return nil
}
