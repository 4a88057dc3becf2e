package capability

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

func TestExtractGo(t *testing.T) {
	source := `package sample

const Version = "1.0"

var counter int

type Widget struct{}

type Renderer interface{}

func New() *Widget { return &Widget{} }

func (w *Widget) Render() string { return "" }
`
	items, err := Extract(".go", source)
	require.NoError(t, err)
	require.Equal(t, []Item{
		{Kind: "const", Name: "Version"},
		{Kind: "var", Name: "counter"},
		{Kind: "type", Name: "Widget"},
		{Kind: "type", Name: "Renderer"},
		{Kind: "func", Name: "New"},
		{Kind: "method", Name: "Render"},
	}, items)
}

func TestExtractGoParseError(t *testing.T) {
	_, err := Extract(".go", "not valid go source {{{")
	require.Error(t, err)
}

func TestExtractGeneric(t *testing.T) {
	source := `import os

class Manager:
    def __init__(self):
        pass

    def consolidate(self, target):
        pass

def main():
    pass
`
	items, err := Extract(".py", source)
	require.NoError(t, err)
	require.Equal(t, []Item{
		{Kind: "class", Name: "Manager"},
		{Kind: "function", Name: "__init__"},
		{Kind: "function", Name: "consolidate"},
		{Kind: "function", Name: "main"},
	}, items)
}

func TestExtractorRun(t *testing.T) {
	root, err := path.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)

	source := "package x\n\nfunc Hello() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.go"), []byte(source), 0o644))

	extractor := NewExtractor(fs.NewOSFileSystem(), config.DefaultConfig(), path.NewResolver(root))

	resp, err := extractor.Run(context.Background(), &ExtractRequest{Path: "x.go"})
	require.NoError(t, err)
	require.Equal(t, "x.go", resp.Path)
	require.Equal(t, []Item{{Kind: "func", Name: "Hello"}}, resp.Items)

	_, err = extractor.Run(context.Background(), &ExtractRequest{Path: "absent.go"})
	require.ErrorIs(t, err, ErrFileMissing)
}

func TestNames(t *testing.T) {
	names := Names([]Item{{Kind: "func", Name: "A"}, {Kind: "type", Name: "B"}})
	require.Equal(t, []string{"A", "B"}, names)
}
