package server

import (
	"context"
	"net/http"
	"time"

	"toolhost/internal/tool/capability"
	"toolhost/internal/tool/consolidate"
	"toolhost/internal/tool/directory"
	"toolhost/internal/tool/file"
	"toolhost/internal/tool/patch"
	"toolhost/internal/tool/service/executor"
)

// runCommandRequest is the wire form of /run_command. Timeout is in
// seconds; zero means no deadline.
type runCommandRequest struct {
	Command     string            `mapstructure:"command"`
	Args        []string          `mapstructure:"args"`
	Environment map[string]string `mapstructure:"environment"`
	Timeout     float64           `mapstructure:"timeout"`
}

type runCommandResponse struct {
	ExitCode  int    `json:"exit_code"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "run_command", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req runCommandRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{"command": req.Command, "args": req.Args}
		payload, err := s.runAllowlisted(ctx, &req)
		if err != nil {
			return nil, details, err
		}
		details["exit_code"] = payload.ExitCode
		return payload, details, nil
	})
}

// runAllowlisted enforces the allowlist before any process is spawned, then
// executes on the worker pool.
func (s *Server) runAllowlisted(ctx context.Context, req *runCommandRequest) (*runCommandResponse, error) {
	if err := s.allowlist.Check(req.Command, req.Args); err != nil {
		return nil, err
	}

	// An omitted or zero timeout gets the configured default rather than
	// no deadline; a child that outlives it is terminated.
	timeout := time.Duration(req.Timeout * float64(time.Second))
	if timeout <= 0 {
		timeout = time.Duration(s.config.Tools.DefaultCommandTimeout) * time.Second
	}

	execReq := &executor.Request{
		Command: req.Command,
		Args:    req.Args,
		Env:     req.Environment,
		Timeout: timeout,
	}

	var result *executor.Result
	err := s.pool.Submit(ctx, func() error {
		var runErr error
		result, runErr = s.executor.Run(ctx, execReq)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return &runCommandResponse{
		ExitCode:  result.ExitCode,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		Truncated: result.Truncated,
	}, nil
}

func (s *Server) handleEditFile(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "edit_file", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req file.EditFileRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{"path": req.Path}
		var resp *file.EditFileResponse
		err := s.pool.Submit(ctx, func() error {
			var runErr error
			resp, runErr = s.editTool.Run(ctx, &req)
			return runErr
		})
		if err != nil {
			return nil, details, err
		}
		details["bytes_written"] = resp.BytesWritten
		if resp.ModifiedExternally {
			details["modified_externally"] = true
		}
		return resp, details, nil
	})
}

func (s *Server) handleApplyPatch(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "apply_patch", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req patch.ApplyPatchRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{"path": req.Path, "hunks": len(req.Hunks)}
		var resp *patch.ApplyPatchResponse
		err := s.pool.Submit(ctx, func() error {
			var runErr error
			resp, runErr = s.patchTool.Run(ctx, &req)
			return runErr
		})
		if err != nil {
			return nil, details, err
		}
		details["hunks_applied"] = resp.HunksApplied
		return resp, details, nil
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "list_files", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req directory.ListFilesRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{"path": req.Path}
		var resp *directory.ListFilesResponse
		err := s.pool.Submit(ctx, func() error {
			var runErr error
			resp, runErr = s.listTool.Run(ctx, &req)
			return runErr
		})
		if err != nil {
			return nil, details, err
		}
		details["entries"] = len(resp.Entries)
		return resp, details, nil
	})
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "read_file", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req file.ReadFileRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{"path": req.Path}
		var resp *file.ReadFileResponse
		err := s.pool.Submit(ctx, func() error {
			var runErr error
			resp, runErr = s.readTool.Run(ctx, &req)
			return runErr
		})
		if err != nil {
			return nil, details, err
		}
		return resp, details, nil
	})
}

func (s *Server) handleExtractCapabilities(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "extract_capabilities", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req capability.ExtractRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{"path": req.Path}
		var resp *capability.ExtractResponse
		err := s.pool.Submit(ctx, func() error {
			var runErr error
			resp, runErr = s.extractor.Run(ctx, &req)
			return runErr
		})
		if err != nil {
			return nil, details, err
		}
		details["items"] = len(resp.Items)
		return resp, details, nil
	})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "consolidate", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		var req consolidate.ConsolidateRequest
		if err := decode(body, &req); err != nil {
			return nil, nil, err
		}
		details := map[string]any{
			"canonical_path": req.CanonicalPath,
			"source_path":    req.SourcePath,
		}
		var resp *consolidate.ConsolidateResponse
		err := s.pool.Submit(ctx, func() error {
			var runErr error
			resp, runErr = s.consolidator.Run(ctx, &req)
			return runErr
		})
		if err != nil {
			return nil, details, err
		}
		details["version"] = resp.Version
		return resp, details, nil
	})
}

func (s *Server) handleRunTests(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "run_tests", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		return s.runFixedCommand(ctx, "go", []string{"test", "./..."})
	})
}

func (s *Server) handleBuildWorkspace(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "build_workspace", func(ctx context.Context, body map[string]any) (any, map[string]any, error) {
		return s.runFixedCommand(ctx, "go", []string{"build", "./..."})
	})
}

// runFixedCommand dispatches the convenience wrappers through the same
// allowlist, executor, and audit path as /run_command.
func (s *Server) runFixedCommand(ctx context.Context, command string, args []string) (any, map[string]any, error) {
	req := &runCommandRequest{Command: command, Args: args}
	details := map[string]any{"command": command, "args": args}
	payload, err := s.runAllowlisted(ctx, req)
	if err != nil {
		return nil, details, err
	}
	details["exit_code"] = payload.ExitCode
	return payload, details, nil
}
