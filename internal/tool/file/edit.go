// Package file implements the workspace file editor and reader tools.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"toolhost/internal/config"
)

// fileEditor defines the minimal filesystem operations needed for editing files.
type fileEditor interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, content []byte, perm os.FileMode) error
	EnsureDirs(path string) error
}

// checksumTracker records the hash of each path's last write so later
// operations can tell whether the file changed out of band.
type checksumTracker interface {
	Compute(data []byte) string
	Get(path string) (string, bool)
	Update(path string, checksum string)
}

// pathResolver defines workspace path resolution operations.
type pathResolver interface {
	Resolve(path string) (string, error)
	Rel(abs string) (string, error)
}

// EditFileTool handles full-content file overwrites.
type EditFileTool struct {
	fileOps         fileEditor
	checksumManager checksumTracker
	config          *config.Config
	pathResolver    pathResolver
}

// NewEditFileTool creates a new EditFileTool with injected dependencies.
func NewEditFileTool(
	fileOps fileEditor,
	checksumManager checksumTracker,
	cfg *config.Config,
	resolver pathResolver,
) *EditFileTool {
	return &EditFileTool{
		fileOps:         fileOps,
		checksumManager: checksumManager,
		config:          cfg,
		pathResolver:    resolver,
	}
}

// Run replaces the target file's contents. When the file does not exist the
// request fails unless create_if_missing is set, in which case missing parent
// directories are created too. The write itself is a single atomic
// full-content overwrite; no locking against concurrent writers to the same
// path is performed. When the target's content no longer matches the hash of
// the last write through this service, the overwrite still proceeds and the
// response flags the out-of-band modification.
func (t *EditFileTool) Run(ctx context.Context, req *EditFileRequest) (*EditFileResponse, error) {
	if err := req.Validate(t.config); err != nil {
		return nil, err
	}

	abs, err := t.pathResolver.Resolve(req.Path)
	if err != nil {
		return nil, err
	}
	rel, err := t.pathResolver.Rel(abs)
	if err != nil {
		return nil, err
	}

	var modifiedExternally bool
	info, err := t.fileOps.Stat(abs)
	switch {
	case err == nil:
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrIsDirectory, rel)
		}
		modifiedExternally, err = t.checkModified(abs)
		if err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		if !req.CreateIfMissing {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, rel)
		}
		if err := t.fileOps.EnsureDirs(filepath.Dir(abs)); err != nil {
			return nil, &EnsureDirsError{Path: filepath.Dir(abs), Cause: err}
		}
	default:
		return nil, &StatError{Path: abs, Cause: err}
	}

	contents := []byte(req.Contents)
	if err := t.fileOps.WriteFileAtomic(abs, contents, 0o644); err != nil {
		return nil, &WriteError{Path: abs, Cause: err}
	}

	t.checksumManager.Update(abs, t.checksumManager.Compute(contents))

	return &EditFileResponse{
		AbsolutePath:       abs,
		RelativePath:       rel,
		BytesWritten:       len(contents),
		ModifiedExternally: modifiedExternally,
	}, nil
}

// checkModified compares the target's current content hash against the hash
// recorded at the last write through this service. A path with no recorded
// hash is never flagged.
func (t *EditFileTool) checkModified(abs string) (bool, error) {
	recorded, ok := t.checksumManager.Get(abs)
	if !ok {
		return false, nil
	}
	current, err := t.fileOps.ReadFile(abs)
	if err != nil {
		return false, &ReadError{Path: abs, Cause: err}
	}
	return t.checksumManager.Compute(current) != recorded, nil
}
