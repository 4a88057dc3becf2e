// Package executor runs allowlisted commands as child processes with a
// scrubbed environment and bounded, lossily-decoded output capture.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"
)

// WorkspaceRootEnv is the single ambient variable re-injected into every
// spawned process.
const WorkspaceRootEnv = "TOOLHOST_WORKSPACE_ROOT"

// Request describes one command invocation. The caller is responsible for
// allowlist validation before handing the request to Run.
type Request struct {
	Command string
	Args    []string
	// Env holds caller-specified overrides added to the scrubbed
	// environment. Keys are unique; order is irrelevant.
	Env map[string]string
	// Timeout of zero means no deadline beyond ctx.
	Timeout time.Duration
}

// Result represents the outcome of a command execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// OSCommandExecutor executes commands using os/exec.
type OSCommandExecutor struct {
	workspaceRoot string
	maxOutput     int64
	gracePeriod   time.Duration
}

// NewOSCommandExecutor creates an executor rooted at the given workspace.
// maxOutput caps each captured stream; gracePeriod is the interrupt-to-kill
// window applied when a timeout fires.
func NewOSCommandExecutor(workspaceRoot string, maxOutput int64, gracePeriod time.Duration) *OSCommandExecutor {
	return &OSCommandExecutor{
		workspaceRoot: workspaceRoot,
		maxOutput:     maxOutput,
		gracePeriod:   gracePeriod,
	}
}

// Run executes the request and returns its captured output. The child sees
// a cleared environment: only the workspace-root variable plus the request's
// explicit overrides, so ambient secrets never leak into spawned tools.
//
// On timeout the child is sent an interrupt, given the grace period, then
// killed; the caller receives ErrTimeout either way.
func (x *OSCommandExecutor) Run(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Command == "" {
		return nil, os.ErrInvalid
	}

	cmd := exec.Command(req.Command, req.Args...)
	cmd.Dir = x.workspaceRoot
	cmd.Env = x.buildEnv(req.Env)
	cmd.Stdin = nil

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: req.Command, Cause: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Command: req.Command, Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: req.Command, Cause: err}
	}

	// Collect output concurrently so it never blocks the timeout select.
	var stdout, stderr string
	var truncated bool
	collectDone := make(chan struct{})
	go func() {
		stdout, stderr, truncated = x.collectOutput(stdoutPipe, stderrPipe)
		close(collectDone)
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var execErr error
	select {
	case err := <-done:
		execErr = err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		execErr = ctx.Err()
	case <-timeoutCh:
		// Interrupt first, then kill after the grace window.
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(x.gracePeriod):
			_ = cmd.Process.Kill()
			<-done
		}
		execErr = fmt.Errorf("%w: %s after %s", ErrTimeout, req.Command, req.Timeout)
	}

	<-collectDone

	result := &Result{
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  exitCode(cmd, execErr),
		Truncated: truncated,
	}

	// A nonzero exit is a result, not an error; the caller inspects
	// ExitCode. Only spawn, cancellation and timeout failures propagate.
	if _, isExit := execErr.(*exec.ExitError); isExit {
		execErr = nil
	}
	return result, execErr
}

// buildEnv returns the scrubbed child environment: workspace root plus
// overrides, sorted for determinism.
func (x *OSCommandExecutor) buildEnv(overrides map[string]string) []string {
	env := make([]string, 0, len(overrides)+1)
	env = append(env, WorkspaceRootEnv+"="+x.workspaceRoot)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if k == WorkspaceRootEnv {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

func (x *OSCommandExecutor) collectOutput(stdout, stderr io.Reader) (string, string, bool) {
	outCollector := newCollector(int(x.maxOutput))
	errCollector := newCollector(int(x.maxOutput))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(outCollector, stdout)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(errCollector, stderr)
	}()
	wg.Wait()

	truncated := outCollector.Truncated() || errCollector.Truncated()
	return outCollector.String(), errCollector.String(), truncated
}

func exitCode(cmd *exec.Cmd, execErr error) int {
	if state := cmd.ProcessState; state != nil {
		return state.ExitCode()
	}
	if execErr != nil {
		return -1
	}
	return 0
}
