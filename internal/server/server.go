// Package server exposes the workspace tools as JSON-over-HTTP endpoints.
// Every handler resolves paths through the sandbox, offloads blocking work
// to the worker pool, writes exactly one audit record, and returns the
// wrapped success/failure envelope.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"toolhost/internal/audit"
	"toolhost/internal/config"
	"toolhost/internal/tool/allowlist"
	"toolhost/internal/tool/capability"
	"toolhost/internal/tool/consolidate"
	"toolhost/internal/tool/directory"
	"toolhost/internal/tool/file"
	"toolhost/internal/tool/patch"
	"toolhost/internal/tool/service/executor"
)

// commandExecutor runs an already-allowlisted command.
type commandExecutor interface {
	Run(ctx context.Context, req *executor.Request) (*executor.Result, error)
}

// taskPool runs blocking work off the request goroutine.
type taskPool interface {
	Submit(ctx context.Context, fn func() error) error
}

// auditor records one entry per handler call.
type auditor interface {
	Append(ctx context.Context, action, requestID string, details map[string]any) error
}

// Server wires the tools behind the HTTP surface.
type Server struct {
	config       *config.Config
	log          zerolog.Logger
	pool         taskPool
	ledger       auditor
	allowlist    *allowlist.Allowlist
	executor     commandExecutor
	editTool     *file.EditFileTool
	readTool     *file.ReadFileTool
	patchTool    *patch.ApplyPatchTool
	listTool     *directory.ListFilesTool
	extractor    *capability.Extractor
	consolidator *consolidate.Manager
}

// Deps carries everything the server needs; all fields are required except
// Log.
type Deps struct {
	Config       *config.Config
	Log          zerolog.Logger
	Pool         taskPool
	Ledger       auditor
	Allowlist    *allowlist.Allowlist
	Executor     commandExecutor
	EditTool     *file.EditFileTool
	ReadTool     *file.ReadFileTool
	PatchTool    *patch.ApplyPatchTool
	ListTool     *directory.ListFilesTool
	Extractor    *capability.Extractor
	Consolidator *consolidate.Manager
}

// New creates a Server from its dependencies.
func New(deps Deps) *Server {
	return &Server{
		config:       deps.Config,
		log:          deps.Log,
		pool:         deps.Pool,
		ledger:       deps.Ledger,
		allowlist:    deps.Allowlist,
		executor:     deps.Executor,
		editTool:     deps.EditTool,
		readTool:     deps.ReadTool,
		patchTool:    deps.PatchTool,
		listTool:     deps.ListTool,
		extractor:    deps.Extractor,
		consolidator: deps.Consolidator,
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/run_command", s.handleRunCommand)
	mux.HandleFunc("/edit_file", s.handleEditFile)
	mux.HandleFunc("/apply_patch", s.handleApplyPatch)
	mux.HandleFunc("/list_files", s.handleListFiles)
	mux.HandleFunc("/read_file", s.handleReadFile)
	mux.HandleFunc("/extract_capabilities", s.handleExtractCapabilities)
	mux.HandleFunc("/consolidate", s.handleConsolidate)
	mux.HandleFunc("/run_tests", s.handleRunTests)
	mux.HandleFunc("/build_workspace", s.handleBuildWorkspace)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// handlerFunc performs one endpoint's work: decode the body, run the tool,
// and return the payload plus the audit details describing what happened.
type handlerFunc func(ctx context.Context, body map[string]any) (payload any, details map[string]any, err error)

// handle is the shared request pipeline. The audit record is written on
// success and failure alike; a failed audit write fails the request even
// when the tool action itself already succeeded. Requests rejected before
// the body parses (wrong method, malformed JSON) never reach a tool and
// leave no audit record.
func (s *Server) handle(w http.ResponseWriter, r *http.Request, action string, fn handlerFunc) {
	start := time.Now()
	requestID := uuid.NewString()

	if r.Method != http.MethodPost {
		writeFailure(w, "invalid_request: method not allowed, use POST")
		return
	}

	body, err := parseBody(r.Body)
	if err != nil {
		writeFailure(w, errorMessage(err))
		return
	}

	ctx := r.Context()
	payload, details, err := fn(ctx, body)
	if details == nil {
		details = map[string]any{}
	}
	details["success"] = err == nil
	if err != nil {
		details["error"] = err.Error()
		details["error_kind"] = errorKind(err)
	}

	if auditErr := s.ledger.Append(ctx, action, requestID, details); auditErr != nil {
		// Fail-closed: an unaudited action is not a completed action.
		err = auditErr
	}

	event := s.log.Info()
	if err != nil {
		event = s.log.Error().Err(err)
	}
	event.
		Str("action", action).
		Str("request_id", requestID).
		Dur("duration", time.Since(start)).
		Bool("success", err == nil).
		Msg("request handled")

	if err != nil {
		writeFailure(w, errorMessage(err))
		return
	}
	writeSuccess(w, payload)
}

// parseBody reads the JSON request body into a map. An empty body is an
// empty map; the wrapper endpoints take no fields.
func parseBody(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	parsed := map[string]any{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return parsed, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, "invalid_request: method not allowed, use GET")
		return
	}
	writeSuccess(w, map[string]any{
		"status":         "ok",
		"workspace_root": s.config.WorkspaceRoot,
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.config.BindAddr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.log.Info().Str("addr", s.config.BindAddr).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.config.Tools.GracefulShutdownMs)*time.Millisecond)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ auditor = (*audit.Ledger)(nil)
