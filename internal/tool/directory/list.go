// Package directory implements workspace directory listing.
package directory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"toolhost/internal/config"
)

// Entry kinds reported by ListFilesTool.
const (
	KindFile      = "file"
	KindDirectory = "directory"
	KindSymlink   = "symlink"
)

// Entry is one directory member.
type Entry struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

// ListFilesRequest lists the immediate children of a workspace directory.
type ListFilesRequest struct {
	Path string `json:"path" mapstructure:"path"`
	// IncludeIgnored disables gitignore filtering.
	IncludeIgnored bool `json:"include_ignored,omitempty" mapstructure:"include_ignored"`
}

func (r *ListFilesRequest) Validate(cfg *config.Config) error {
	return nil // empty path means the workspace root
}

type ListFilesResponse struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// fileSystem defines the filesystem operations needed for listing.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	Lstat(path string) (os.FileInfo, error)
	ListDir(path string) ([]os.FileInfo, error)
}

// gitignoreService decides whether a workspace-relative path is ignored.
type gitignoreService interface {
	ShouldIgnore(relativePath string) bool
}

// pathResolver defines workspace path resolution operations.
type pathResolver interface {
	Resolve(path string) (string, error)
	Rel(abs string) (string, error)
}

// ListFilesTool handles directory listing operations.
type ListFilesTool struct {
	fs               fileSystem
	gitignoreService gitignoreService
	config           *config.Config
	pathResolver     pathResolver
}

// NewListFilesTool creates a new ListFilesTool with injected dependencies.
func NewListFilesTool(
	fs fileSystem,
	gitignoreService gitignoreService,
	cfg *config.Config,
	resolver pathResolver,
) *ListFilesTool {
	return &ListFilesTool{
		fs:               fs,
		gitignoreService: gitignoreService,
		config:           cfg,
		pathResolver:     resolver,
	}
}

// Run lists the immediate children of a workspace directory, reporting each
// entry's kind and size. Symlinks are reported as their own kind via Lstat,
// never followed. Entries are sorted directories first, then alphabetically.
func (t *ListFilesTool) Run(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
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

	info, err := t.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, req.Path)
		}
		return nil, &ListDirError{Path: abs, Cause: err}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, req.Path)
	}

	infos, err := t.fs.ListDir(abs)
	if err != nil {
		return nil, &ListDirError{Path: abs, Cause: err}
	}

	entries := make([]Entry, 0, len(infos))
	for _, child := range infos {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		entryRel := filepath.ToSlash(filepath.Join(rel, child.Name()))
		if !req.IncludeIgnored && t.gitignoreService != nil && t.gitignoreService.ShouldIgnore(entryRel) {
			continue
		}

		// Stat follows symlinks; Lstat tells us what the entry itself is.
		lst, err := t.fs.Lstat(filepath.Join(abs, child.Name()))
		if err != nil {
			return nil, &ListDirError{Path: filepath.Join(abs, child.Name()), Cause: err}
		}

		entries = append(entries, Entry{
			Path: entryRel,
			Kind: kindOf(lst),
			Size: lst.Size(),
		})
	}

	// Directories first, then files, both alphabetically.
	sort.Slice(entries, func(i, j int) bool {
		if (entries[i].Kind == KindDirectory) != (entries[j].Kind == KindDirectory) {
			return entries[i].Kind == KindDirectory
		}
		return entries[i].Path < entries[j].Path
	})

	if len(entries) > t.config.Tools.MaxListResults {
		entries = entries[:t.config.Tools.MaxListResults]
	}

	return &ListFilesResponse{Path: rel, Entries: entries}, nil
}

func kindOf(info os.FileInfo) string {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return KindSymlink
	case info.IsDir():
		return KindDirectory
	default:
		return KindFile
	}
}
