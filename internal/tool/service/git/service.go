// Package git provides gitignore pattern matching for directory listings.
package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// GitignoreReadError is returned when .gitignore cannot be read.
type GitignoreReadError struct {
	Path  string
	Cause error
}

func (e *GitignoreReadError) Error() string {
	return fmt.Sprintf("failed to read .gitignore at %s: %v", e.Path, e.Cause)
}
func (e *GitignoreReadError) Unwrap() error { return e.Cause }

// fileSystem defines the minimal filesystem interface needed here.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

// Service implements gitignore pattern matching using go-git's matcher.
type Service struct {
	matcher gitignore.Matcher
}

// NewService creates a gitignore service by loading .gitignore from the
// workspace root. Returns a service that never ignores if no .gitignore
// exists (not an error).
func NewService(workspaceRoot string, fs fileSystem) (*Service, error) {
	gitignorePath := filepath.Join(workspaceRoot, ".gitignore")

	if _, err := fs.Stat(gitignorePath); err != nil {
		return &Service{matcher: nil}, nil
	}

	content, err := fs.ReadFile(gitignorePath)
	if err != nil {
		return nil, &GitignoreReadError{Path: gitignorePath, Cause: err}
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		if p := gitignore.ParsePattern(line, nil); p != nil {
			patterns = append(patterns, p)
		}
	}

	return &Service{matcher: gitignore.NewMatcher(patterns)}, nil
}

// ShouldIgnore checks if a workspace-relative path matches any gitignore
// pattern. Returns false when no .gitignore was loaded.
func (g *Service) ShouldIgnore(relativePath string) bool {
	if g.matcher == nil {
		return false
	}
	return g.matcher.Match(splitPath(relativePath), false)
}

// splitPath splits a path into segments for gitignore matching, dropping
// empty and "." segments.
func splitPath(path string) []string {
	if path == "" {
		return []string{}
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	var segments []string
	for _, part := range parts {
		if part != "" && part != "." {
			segments = append(segments, part)
		}
	}
	return segments
}

// NoOpService is a gitignore service that never ignores any files.
type NoOpService struct{}

// ShouldIgnore always returns false.
func (s *NoOpService) ShouldIgnore(relativePath string) bool { return false }
