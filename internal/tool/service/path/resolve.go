// Package path provides workspace-confined path resolution.
// Every caller-supplied path is interpreted relative to the workspace
// root and rejected before any filesystem access if it would escape it.
package path

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves caller-supplied relative paths within a workspace boundary.
type Resolver struct {
	workspaceRoot string
}

// NewResolver creates a resolver for the given canonical workspace root.
func NewResolver(workspaceRoot string) *Resolver {
	return &Resolver{workspaceRoot: workspaceRoot}
}

// Root returns the canonical workspace root.
func (r *Resolver) Root() string { return r.workspaceRoot }

// CanonicaliseRoot canonicalises a workspace root path by making it absolute
// and resolving symlinks. Returns an error if the path doesn't exist or isn't
// a directory.
func CanonicaliseRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &WorkspaceRootError{Root: root, Cause: err}
	}

	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", &WorkspaceRootError{Root: absRoot, Cause: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &WorkspaceRootError{Root: resolved, Cause: err}
	}
	if !info.IsDir() {
		return "", &WorkspaceRootError{Root: resolved, Cause: ErrNotADirectory}
	}
	return resolved, nil
}

// Resolve turns a caller-supplied relative path into an absolute path
// guaranteed to stay inside the workspace root. The empty string resolves
// to the root itself.
//
// The check happens in two stages. First a purely lexical walk: absolute
// paths are rejected outright, and each ".." pops one accumulated segment,
// failing as soon as the walk would climb past the root. This stops
// "../../etc/passwd" style escapes before any filesystem access. Second,
// if the joined path exists on disk it is canonicalised (symlinks resolved)
// and the canonical result must still have the root as a prefix.
//
// When the target does not exist yet (a file about to be created) only the
// lexical stage applies; a pre-existing symlink higher up the path could
// redirect a future write outside the root. Known gap, intentionally not
// special-cased here.
func (r *Resolver) Resolve(path string) (string, error) {
	if r.workspaceRoot == "" {
		return "", ErrWorkspaceRootNotSet
	}
	if filepath.IsAbs(path) {
		return "", &SandboxViolationError{Path: path, Reason: "absolute path"}
	}

	var segments []string
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch part {
		case "", ".":
			// no-op
		case "..":
			if len(segments) == 0 {
				return "", &SandboxViolationError{Path: path, Reason: "escapes workspace root"}
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, part)
		}
	}

	abs := filepath.Join(append([]string{r.workspaceRoot}, segments...)...)

	// Authoritative check: if the target exists, resolve symlinks and
	// require the canonical path to still live under the root.
	if _, err := os.Lstat(abs); err == nil {
		canonical, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", &ResolveError{Path: path, Cause: err}
		}
		if !r.contains(canonical) {
			return "", &SandboxViolationError{Path: path, Reason: "symlink target outside workspace root"}
		}
		return canonical, nil
	}

	return abs, nil
}

// Rel returns the workspace-relative form of an already resolved path.
func (r *Resolver) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(r.workspaceRoot, abs)
	if err != nil {
		return "", &SandboxViolationError{Path: abs, Reason: "not relative to workspace root"}
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

func (r *Resolver) contains(abs string) bool {
	return abs == r.workspaceRoot || strings.HasPrefix(abs, r.workspaceRoot+string(filepath.Separator))
}
