// Command toolhost serves the workspace tool API: sandboxed file edits,
// patches, allowlisted command execution, capability extraction, and
// version consolidation, with an append-only audit ledger.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"toolhost/internal/audit"
	"toolhost/internal/config"
	"toolhost/internal/server"
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

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("toolhost exited")
	}
}

func run(log zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	root, err := path.CanonicaliseRoot(cfg.WorkspaceRoot)
	if err != nil {
		return err
	}
	cfg.WorkspaceRoot = root

	ledgerPath := cfg.LedgerPath
	if !filepath.IsAbs(ledgerPath) {
		ledgerPath = filepath.Join(root, ledgerPath)
	}
	ledger, err := audit.NewLedger(ledgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	allowlistPath := cfg.AllowlistPath
	if !filepath.IsAbs(allowlistPath) {
		allowlistPath = filepath.Join(root, allowlistPath)
	}
	allow, err := allowlist.Load(allowlistPath)
	if err != nil {
		return err
	}
	log.Info().Int("entries", allow.Len()).Str("path", allowlistPath).Msg("allowlist loaded")

	pool := worker.New(cfg.Workers)
	defer pool.Close()

	osFS := fs.NewOSFileSystem()
	resolver := path.NewResolver(root)
	checksums := hashutil.NewChecksumManager()

	gitignore, err := git.NewService(root, osFS)
	var listTool *directory.ListFilesTool
	if err != nil {
		log.Warn().Err(err).Msg("gitignore unavailable, listing everything")
		listTool = directory.NewListFilesTool(osFS, &git.NoOpService{}, cfg, resolver)
	} else {
		listTool = directory.NewListFilesTool(osFS, gitignore, cfg, resolver)
	}

	actor := "toolhost-" + uuid.NewString()[:8]

	srv := server.New(server.Deps{
		Config:    cfg,
		Log:       log.With().Str("component", "server").Logger(),
		Pool:      pool,
		Ledger:    ledger,
		Allowlist: allow,
		Executor: executor.NewOSCommandExecutor(root, cfg.Tools.MaxCommandOutputSize,
			time.Duration(cfg.Tools.GracefulShutdownMs)*time.Millisecond),
		EditTool:     file.NewEditFileTool(osFS, checksums, cfg, resolver),
		ReadTool:     file.NewReadFileTool(osFS, cfg, resolver),
		PatchTool:    patch.NewApplyPatchTool(osFS, cfg, resolver),
		ListTool:     listTool,
		Extractor:    capability.NewExtractor(osFS, cfg, resolver),
		Consolidator: consolidate.NewManager(osFS, resolver, checksums, cfg, actor),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("workspace_root", root).Str("actor", actor).Msg("toolhost starting")
	return srv.Run(ctx)
}
