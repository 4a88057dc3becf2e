package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhost/internal/config"
	"toolhost/internal/tool/service/fs"
	"toolhost/internal/tool/service/git"
	"toolhost/internal/tool/service/path"
)

func newListFixture(t *testing.T) (*ListFilesTool, string) {
	t.Helper()
	root, err := path.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)

	osFS := fs.NewOSFileSystem()
	ignore, err := git.NewService(root, osFS)
	require.NoError(t, err)

	tool := NewListFilesTool(osFS, ignore, config.DefaultConfig(), path.NewResolver(root))
	return tool, root
}

func TestListFileAndSubdirectory(t *testing.T) {
	tool, root := newListFixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("12345"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	resp, err := tool.Run(context.Background(), &ListFilesRequest{Path: ""})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)

	// Directories sort first.
	require.Equal(t, "sub", resp.Entries[0].Path)
	require.Equal(t, KindDirectory, resp.Entries[0].Kind)
	require.Equal(t, "a.txt", resp.Entries[1].Path)
	require.Equal(t, KindFile, resp.Entries[1].Kind)
	require.Equal(t, int64(5), resp.Entries[1].Size)
}

func TestListReportsSymlinkKind(t *testing.T) {
	tool, root := newListFixture(t)

	target := filepath.Join(root, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.txt")))

	resp, err := tool.Run(context.Background(), &ListFilesRequest{Path: ""})
	require.NoError(t, err)

	kinds := map[string]string{}
	for _, e := range resp.Entries {
		kinds[e.Path] = e.Kind
	}
	require.Equal(t, KindFile, kinds["real.txt"])
	require.Equal(t, KindSymlink, kinds["link.txt"])
}

func TestListRespectsGitignore(t *testing.T) {
	root, err := path.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "noise.log"), nil, 0o644))

	osFS := fs.NewOSFileSystem()
	ignore, err := git.NewService(root, osFS)
	require.NoError(t, err)
	tool := NewListFilesTool(osFS, ignore, config.DefaultConfig(), path.NewResolver(root))

	resp, err := tool.Run(context.Background(), &ListFilesRequest{Path: ""})
	require.NoError(t, err)
	for _, e := range resp.Entries {
		require.NotEqual(t, "noise.log", e.Path)
	}

	resp, err = tool.Run(context.Background(), &ListFilesRequest{Path: "", IncludeIgnored: true})
	require.NoError(t, err)
	found := false
	for _, e := range resp.Entries {
		if e.Path == "noise.log" {
			found = true
		}
	}
	require.True(t, found)
}

func TestListSubdirectoryPathsAreWorkspaceRelative(t *testing.T) {
	tool, root := newListFixture(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg/deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg/deep/f.go"), []byte("package deep"), 0o644))

	resp, err := tool.Run(context.Background(), &ListFilesRequest{Path: "pkg/deep"})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	require.Equal(t, "pkg/deep/f.go", resp.Entries[0].Path)
}

func TestListErrors(t *testing.T) {
	tool, root := newListFixture(t)

	t.Run("missing path", func(t *testing.T) {
		_, err := tool.Run(context.Background(), &ListFilesRequest{Path: "nope"})
		require.ErrorIs(t, err, ErrFileMissing)
	})

	t.Run("not a directory", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "plain.txt"), nil, 0o644))
		_, err := tool.Run(context.Background(), &ListFilesRequest{Path: "plain.txt"})
		require.ErrorIs(t, err, ErrNotADirectory)
	})

	t.Run("escape attempt", func(t *testing.T) {
		_, err := tool.Run(context.Background(), &ListFilesRequest{Path: "../"})
		require.True(t, path.IsSandboxViolation(err))
	})
}
