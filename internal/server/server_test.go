package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"toolhost/internal/audit"
	"toolhost/internal/config"
	"toolhost/internal/tool/allowlist"
	"toolhost/internal/tool/capability"
	"toolhost/internal/tool/consolidate"
	"toolhost/internal/tool/directory"
	"toolhost/internal/tool/file"
	"toolhost/internal/tool/hashutil"
	"toolhost/internal/tool/patch"
	"toolhost/internal/tool/service/executor"
	"toolhost/internal/tool/service/fs"
	"toolhost/internal/tool/service/git"
	"toolhost/internal/tool/service/path"
	"toolhost/internal/worker"
)

type serverFixture struct {
	ts         *httptest.Server
	root       string
	ledgerPath string
}

func newServerFixture(t *testing.T) *serverFixture {
	return newServerFixtureWithConfig(t, nil)
}

func newServerFixtureWithConfig(t *testing.T, tweak func(*config.Config)) *serverFixture {
	t.Helper()
	root, err := path.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = root
	cfg.LedgerPath = filepath.Join(root, ".toolhost", "ledger.jsonl")
	if tweak != nil {
		tweak(cfg)
	}

	ledger, err := audit.NewLedger(cfg.LedgerPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	pool := worker.New(4)
	t.Cleanup(pool.Close)

	osFS := fs.NewOSFileSystem()
	resolver := path.NewResolver(root)
	checksums := hashutil.NewChecksumManager()

	allow := allowlist.New([]allowlist.Entry{
		{Executable: "sh", AllowAdditionalArgs: true},
		{Executable: "go", Args: []string{"test", "./..."}},
		{Executable: "go", Args: []string{"build", "./..."}},
	})

	srv := New(Deps{
		Config:       cfg,
		Log:          zerolog.Nop(),
		Pool:         pool,
		Ledger:       ledger,
		Allowlist:    allow,
		Executor:     executor.NewOSCommandExecutor(root, 1<<20, 100*time.Millisecond),
		EditTool:     file.NewEditFileTool(osFS, checksums, cfg, resolver),
		ReadTool:     file.NewReadFileTool(osFS, cfg, resolver),
		PatchTool:    patch.NewApplyPatchTool(osFS, cfg, resolver),
		ListTool:     directory.NewListFilesTool(osFS, &git.NoOpService{}, cfg, resolver),
		Extractor:    capability.NewExtractor(osFS, cfg, resolver),
		Consolidator: consolidate.NewManager(osFS, resolver, checksums, cfg, "toolhost-test"),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &serverFixture{ts: ts, root: root, ledgerPath: cfg.LedgerPath}
}

func (f *serverFixture) post(t *testing.T, endpoint string, body any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.ts.URL+endpoint, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func (f *serverFixture) ledgerLines(t *testing.T) []map[string]any {
	t.Helper()
	fh, err := os.Open(f.ledgerPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer fh.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func payload(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	p, ok := body["payload"].(map[string]any)
	require.True(t, ok, "payload must be an object, got %v", body)
	return p
}

func TestEditThenReadRoundtrip(t *testing.T) {
	f := newServerFixture(t)

	status, body := f.post(t, "/edit_file", map[string]any{
		"path":              "src/main.txt",
		"contents":          "hello toolhost\n",
		"create_if_missing": true,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(15), payload(t, body)["bytes_written"])

	status, body = f.post(t, "/read_file", map[string]any{"path": "src/main.txt"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hello toolhost\n", payload(t, body)["contents"])
}

func TestSandboxViolationRejected(t *testing.T) {
	f := newServerFixture(t)

	status, body := f.post(t, "/read_file", map[string]any{"path": "../../etc/passwd"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])
	require.Contains(t, body["message"], "sandbox_violation")
}

func TestRunCommandAllowed(t *testing.T) {
	f := newServerFixture(t)

	status, body := f.post(t, "/run_command", map[string]any{
		"command": "sh",
		"args":    []string{"-c", "echo out; echo err >&2"},
	})
	require.Equal(t, http.StatusOK, status)
	p := payload(t, body)
	require.Equal(t, float64(0), p["exit_code"])
	require.Equal(t, "out\n", p["stdout"])
	require.Equal(t, "err\n", p["stderr"])
}

func TestRunCommandNotAllowed(t *testing.T) {
	f := newServerFixture(t)

	status, body := f.post(t, "/run_command", map[string]any{
		"command": "rm",
		"args":    []string{"-rf", "/"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["message"], "command_not_allowed")
}

func TestRunCommandDefaultTimeoutApplies(t *testing.T) {
	f := newServerFixtureWithConfig(t, func(cfg *config.Config) {
		cfg.Tools.DefaultCommandTimeout = 1
	})

	// No timeout in the request: the configured default still bounds it.
	status, body := f.post(t, "/run_command", map[string]any{
		"command": "sh",
		"args":    []string{"-c", "sleep 30"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["message"], "command_timeout")
}

func TestApplyPatchEndpoint(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "data.txt"), []byte("a\nb\nc\nd\n"), 0o644))

	status, body := f.post(t, "/apply_patch", map[string]any{
		"path": "data.txt",
		"hunks": []map[string]any{
			{"start_line": 2, "end_line": 3, "replacement": "X\n"},
		},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), payload(t, body)["hunks_applied"])

	got, err := os.ReadFile(filepath.Join(f.root, "data.txt"))
	require.NoError(t, err)
	require.Equal(t, "a\nX\nd\n", string(got))
}

func TestListFilesEndpoint(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.txt"), []byte("12345"), 0o644))

	status, body := f.post(t, "/list_files", map[string]any{"path": ""})
	require.Equal(t, http.StatusOK, status)

	entries, ok := payload(t, body)["entries"].([]any)
	require.True(t, ok)
	// The fixture's ledger directory is also present.
	var names []string
	for _, e := range entries {
		entry := e.(map[string]any)
		names = append(names, entry["path"].(string)+":"+entry["kind"].(string))
	}
	require.Contains(t, names, "a.txt:file")
	require.Contains(t, names, "sub:directory")
}

func TestConsolidateEndpoint(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "keep.go"),
		[]byte("package x\n\nfunc Keep() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "old.go"),
		[]byte("package x\n\nfunc Old() {}\n"), 0o644))

	status, body := f.post(t, "/consolidate", map[string]any{
		"canonical_path":       "keep.go",
		"source_path":          "old.go",
		"consolidation_reason": "dedupe",
	})
	require.Equal(t, http.StatusOK, status)
	p := payload(t, body)
	require.Equal(t, ".toolhost/consolidation/archive/keep.go.v1", p["archive_path"])

	_, err := os.Stat(filepath.Join(f.root, ".toolhost", "consolidation", "archive", "keep.go.v1"))
	require.NoError(t, err)
}

func TestExtractCapabilitiesEndpoint(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "lib.go"),
		[]byte("package lib\n\nfunc Alpha() {}\n\ntype Beta struct{}\n"), 0o644))

	status, body := f.post(t, "/extract_capabilities", map[string]any{"path": "lib.go"})
	require.Equal(t, http.StatusOK, status)

	items, ok := payload(t, body)["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	require.Equal(t, "func", first["kind"])
	require.Equal(t, "Alpha", first["name"])
}

func TestEveryCallAppendsOneLedgerLine(t *testing.T) {
	f := newServerFixture(t)

	// One success, two failures.
	f.post(t, "/edit_file", map[string]any{
		"path": "x.txt", "contents": "x", "create_if_missing": true,
	})
	f.post(t, "/edit_file", map[string]any{"path": "absent.txt", "contents": "x"})
	f.post(t, "/run_command", map[string]any{"command": "rm", "args": []string{"-rf", "/"}})

	lines := f.ledgerLines(t)
	require.Len(t, lines, 3)

	require.Equal(t, "edit_file", lines[0]["action"])
	require.Equal(t, true, lines[0]["details"].(map[string]any)["success"])
	require.Equal(t, false, lines[1]["details"].(map[string]any)["success"])
	require.Equal(t, "run_command", lines[2]["action"])
	require.Contains(t, lines[2]["details"].(map[string]any)["error_kind"], "command_not_allowed")

	for _, line := range lines {
		require.NotEmpty(t, line["request_id"])
		require.NotEmpty(t, line["timestamp"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/edit_file")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, false, body["success"])
	require.True(t, strings.Contains(body["message"].(string), "method not allowed"))
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, true, body["success"])
	require.Equal(t, "ok", payload(t, body)["status"])
}

func TestMalformedBody(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/edit_file", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Rejections before the body parses never reach a tool, so the
	// ledger stays empty.
	require.Empty(t, f.ledgerLines(t))
}
