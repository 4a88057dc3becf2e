package patch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhost/internal/config"
	"toolhost/internal/tool/service/fs"
	"toolhost/internal/tool/service/path"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		hunks    []Hunk
		expected string
		invalid  bool
	}{
		{
			name:     "single middle replacement",
			contents: "a\nb\nc\nd\n",
			hunks:    []Hunk{{StartLine: 2, EndLine: 3, Replacement: "X\n"}},
			expected: "a\nX\nd\n",
		},
		{
			name:     "replace first line",
			contents: "a\nb\n",
			hunks:    []Hunk{{StartLine: 1, EndLine: 1, Replacement: "first\n"}},
			expected: "first\nb\n",
		},
		{
			name:     "replace last line without trailing newline",
			contents: "a\nb",
			hunks:    []Hunk{{StartLine: 2, EndLine: 2, Replacement: "B"}},
			expected: "a\nB",
		},
		{
			name:     "delete lines with empty replacement",
			contents: "a\nb\nc\n",
			hunks:    []Hunk{{StartLine: 2, EndLine: 2, Replacement: ""}},
			expected: "a\nc\n",
		},
		{
			name:     "multiple ordered hunks",
			contents: "1\n2\n3\n4\n5\n",
			hunks: []Hunk{
				{StartLine: 1, EndLine: 1, Replacement: "one\n"},
				{StartLine: 3, EndLine: 4, Replacement: "three-four\n"},
			},
			expected: "one\n2\nthree-four\n5\n",
		},
		{
			name:     "adjacent hunks do not overlap",
			contents: "1\n2\n3\n",
			hunks: []Hunk{
				{StartLine: 1, EndLine: 1, Replacement: "A\n"},
				{StartLine: 2, EndLine: 2, Replacement: "B\n"},
			},
			expected: "A\nB\n3\n",
		},
		{
			name:     "zero start line",
			contents: "a\n",
			hunks:    []Hunk{{StartLine: 0, EndLine: 1, Replacement: "x"}},
			invalid:  true,
		},
		{
			name:     "inverted range",
			contents: "a\nb\n",
			hunks:    []Hunk{{StartLine: 2, EndLine: 1, Replacement: "x"}},
			invalid:  true,
		},
		{
			name:     "end past file",
			contents: "a\nb\n",
			hunks:    []Hunk{{StartLine: 1, EndLine: 3, Replacement: "x"}},
			invalid:  true,
		},
		{
			name:     "overlapping hunks",
			contents: "1\n2\n3\n4\n",
			hunks: []Hunk{
				{StartLine: 1, EndLine: 2, Replacement: "x\n"},
				{StartLine: 2, EndLine: 3, Replacement: "y\n"},
			},
			invalid: true,
		},
		{
			name:     "out of order hunks",
			contents: "1\n2\n3\n4\n",
			hunks: []Hunk{
				{StartLine: 3, EndLine: 3, Replacement: "x\n"},
				{StartLine: 1, EndLine: 1, Replacement: "y\n"},
			},
			invalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, applied, err := Apply(tt.contents, tt.hunks)
			if tt.invalid {
				require.Error(t, err)
				require.True(t, IsInvalidHunk(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, result)
			require.Equal(t, len(tt.hunks), applied)
		})
	}
}

func newPatchFixture(t *testing.T) (*ApplyPatchTool, string) {
	t.Helper()
	root, err := path.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)

	tool := NewApplyPatchTool(fs.NewOSFileSystem(), config.DefaultConfig(), path.NewResolver(root))
	return tool, root
}

func TestRunAppliesHunks(t *testing.T) {
	tool, root := newPatchFixture(t)
	target := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\nb\nc\nd\n"), 0o644))

	resp, err := tool.Run(context.Background(), &ApplyPatchRequest{
		Path:  "f.txt",
		Hunks: []Hunk{{StartLine: 2, EndLine: 3, Replacement: "X\n"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.HunksApplied)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "a\nX\nd\n", string(got))
}

func TestRunInvalidHunkLeavesFileUntouched(t *testing.T) {
	tool, root := newPatchFixture(t)
	target := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\nb\nc\n"), 0o644))

	_, err := tool.Run(context.Background(), &ApplyPatchRequest{
		Path: "f.txt",
		Hunks: []Hunk{
			{StartLine: 1, EndLine: 2, Replacement: "x\n"},
			{StartLine: 2, EndLine: 3, Replacement: "y\n"},
		},
	})
	require.Error(t, err)
	require.True(t, IsInvalidHunk(err))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", string(got))
}

func TestRunMissingFile(t *testing.T) {
	tool, _ := newPatchFixture(t)

	_, err := tool.Run(context.Background(), &ApplyPatchRequest{
		Path:  "absent.txt",
		Hunks: []Hunk{{StartLine: 1, EndLine: 1, Replacement: "x"}},
	})
	require.ErrorIs(t, err, ErrFileMissing)
}

func TestRunRejectsEscape(t *testing.T) {
	tool, _ := newPatchFixture(t)

	_, err := tool.Run(context.Background(), &ApplyPatchRequest{
		Path:  "../../f.txt",
		Hunks: []Hunk{{StartLine: 1, EndLine: 1, Replacement: "x"}},
	})
	require.Error(t, err)
	require.True(t, path.IsSandboxViolation(err))
}
