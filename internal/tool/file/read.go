package file

import (
	"context"
	"fmt"
	"os"

	"toolhost/internal/config"
)

// fileReader defines the minimal filesystem operations needed for reading files.
type fileReader interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

// ReadFileTool handles file reading operations.
type ReadFileTool struct {
	fileOps      fileReader
	config       *config.Config
	pathResolver pathResolver
}

// NewReadFileTool creates a new ReadFileTool with injected dependencies.
func NewReadFileTool(fileOps fileReader, cfg *config.Config, resolver pathResolver) *ReadFileTool {
	return &ReadFileTool{
		fileOps:      fileOps,
		config:       cfg,
		pathResolver: resolver,
	}
}

// Run returns the full contents of a file inside the workspace.
func (t *ReadFileTool) Run(ctx context.Context, req *ReadFileRequest) (*ReadFileResponse, error) {
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

	info, err := t.fileOps.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, rel)
		}
		return nil, &StatError{Path: abs, Cause: err}
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}

	contents, err := t.fileOps.ReadFile(abs)
	if err != nil {
		return nil, &ReadError{Path: abs, Cause: err}
	}

	return &ReadFileResponse{
		Path:     rel,
		Contents: string(contents),
	}, nil
}
