// Package patch applies ordered line-range replacement hunks to a file.
// Hunks are explicit ranges supplied by the caller; no diffing happens here.
package patch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"toolhost/internal/config"
)

// Hunk replaces the 1-indexed inclusive line range [StartLine, EndLine]
// with Replacement.
type Hunk struct {
	StartLine   int    `json:"start_line" mapstructure:"start_line"`
	EndLine     int    `json:"end_line" mapstructure:"end_line"`
	Replacement string `json:"replacement" mapstructure:"replacement"`
}

// ApplyPatchRequest carries the target path and the hunks, which must be
// given in increasing, non-overlapping line order.
type ApplyPatchRequest struct {
	Path  string `json:"path" mapstructure:"path"`
	Hunks []Hunk `json:"hunks" mapstructure:"hunks"`
}

func (r *ApplyPatchRequest) Validate(cfg *config.Config) error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if len(r.Hunks) == 0 {
		return ErrHunksRequired
	}
	return nil
}

type ApplyPatchResponse struct {
	Path         string `json:"path"`
	HunksApplied int    `json:"hunks_applied"`
}

// patchFS is the minimal filesystem surface needed to patch a file.
type patchFS interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, content []byte, perm os.FileMode) error
}

// pathResolver defines workspace path resolution operations.
type pathResolver interface {
	Resolve(path string) (string, error)
	Rel(abs string) (string, error)
}

// ApplyPatchTool applies line-range hunks to an existing workspace file.
type ApplyPatchTool struct {
	fileOps      patchFS
	config       *config.Config
	pathResolver pathResolver
}

// NewApplyPatchTool creates a new ApplyPatchTool with injected dependencies.
func NewApplyPatchTool(fileOps patchFS, cfg *config.Config, resolver pathResolver) *ApplyPatchTool {
	return &ApplyPatchTool{
		fileOps:      fileOps,
		config:       cfg,
		pathResolver: resolver,
	}
}

// Run applies the hunks left to right over the file's current contents.
// Any invalid hunk (zero start line, inverted range, line past end of file,
// overlap with or regression behind an earlier hunk) fails the whole request
// before anything is written. The patched result is written atomically.
func (t *ApplyPatchTool) Run(ctx context.Context, req *ApplyPatchRequest) (*ApplyPatchResponse, error) {
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

	original, err := t.fileOps.ReadFile(abs)
	if err != nil {
		return nil, &ReadError{Path: abs, Cause: err}
	}

	patched, applied, err := Apply(string(original), req.Hunks)
	if err != nil {
		return nil, err
	}

	if int64(len(patched)) > t.config.Tools.MaxFileSize {
		return nil, fmt.Errorf("%w: patched result is %d bytes", ErrFileTooLarge, len(patched))
	}

	if err := t.fileOps.WriteFileAtomic(abs, []byte(patched), info.Mode().Perm()); err != nil {
		return nil, &WriteError{Path: abs, Cause: err}
	}

	return &ApplyPatchResponse{Path: rel, HunksApplied: applied}, nil
}

// Apply runs the hunks over contents and returns the patched text plus the
// number of hunks applied. It is pure: validation failures leave nothing
// half-applied because nothing is written until every hunk has been placed.
//
// The algorithm indexes the byte range of each line, then walks the hunks
// with a write cursor: text before a hunk's start offset is copied verbatim,
// the hunk's replacement is appended in place of the original range, and the
// cursor advances past the hunk's end. A hunk starting before the cursor
// means overlap or out-of-order input and fails the patch.
func Apply(contents string, hunks []Hunk) (string, int, error) {
	lines := lineRanges(contents)

	var out strings.Builder
	cursor := 0

	for i, h := range hunks {
		if h.StartLine < 1 {
			return "", 0, &InvalidHunkError{Index: i, Reason: "start_line must be >= 1"}
		}
		if h.EndLine < h.StartLine {
			return "", 0, &InvalidHunkError{Index: i, Reason: fmt.Sprintf("end_line %d < start_line %d", h.EndLine, h.StartLine)}
		}
		if h.EndLine > len(lines) {
			return "", 0, &InvalidHunkError{Index: i, Reason: fmt.Sprintf("end_line %d exceeds file line count %d", h.EndLine, len(lines))}
		}

		start := lines[h.StartLine-1].start
		end := lines[h.EndLine-1].end

		if start < cursor {
			return "", 0, &InvalidHunkError{Index: i, Reason: "hunks overlap or are out of order"}
		}

		out.WriteString(contents[cursor:start])
		out.WriteString(h.Replacement)
		cursor = end
	}

	out.WriteString(contents[cursor:])
	return out.String(), len(hunks), nil
}

// lineRange is the half-open byte range [start, end) of one line, with end
// sitting past the line's terminating newline when there is one.
type lineRange struct {
	start int
	end   int
}

func lineRanges(contents string) []lineRange {
	var ranges []lineRange
	start := 0
	for i := 0; i < len(contents); i++ {
		if contents[i] == '\n' {
			ranges = append(ranges, lineRange{start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(contents) {
		// Final line without a trailing newline.
		ranges = append(ranges, lineRange{start: start, end: len(contents)})
	}
	return ranges
}
