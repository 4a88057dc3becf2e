// Package capability extracts named declarations from source files.
// It is a read-only analysis primitive: the consolidation manager uses it
// to record which declarations a merge preserved or superseded.
package capability

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"toolhost/internal/config"
)

// Item is one named declaration found in a source file.
type Item struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// ExtractRequest names the file to analyse.
type ExtractRequest struct {
	Path string `json:"path" mapstructure:"path"`
}

func (r *ExtractRequest) Validate(cfg *config.Config) error {
	if r.Path == "" {
		return ErrPathRequired
	}
	return nil
}

type ExtractResponse struct {
	Path  string `json:"path"`
	Items []Item `json:"items"`
}

// fileReader defines the minimal filesystem operations needed here.
type fileReader interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

// pathResolver defines workspace path resolution operations.
type pathResolver interface {
	Resolve(path string) (string, error)
	Rel(abs string) (string, error)
}

// Extractor produces capability lists from workspace source files.
type Extractor struct {
	fileOps      fileReader
	config       *config.Config
	pathResolver pathResolver
}

// NewExtractor creates an Extractor with injected dependencies.
func NewExtractor(fileOps fileReader, cfg *config.Config, resolver pathResolver) *Extractor {
	return &Extractor{
		fileOps:      fileOps,
		config:       cfg,
		pathResolver: resolver,
	}
}

// Run extracts declarations from a workspace file. Go files get a real AST
// pass; other source files fall back to a line scan for common declaration
// forms so consolidation still produces useful capability lists.
func (t *Extractor) Run(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
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

	if _, err := t.fileOps.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, rel)
		}
		return nil, &ExtractError{Path: abs, Cause: err}
	}

	source, err := t.fileOps.ReadFile(abs)
	if err != nil {
		return nil, &ExtractError{Path: abs, Cause: err}
	}

	items, err := Extract(filepath.Ext(abs), string(source))
	if err != nil {
		return nil, &ExtractError{Path: abs, Cause: err}
	}

	return &ExtractResponse{Path: rel, Items: items}, nil
}

// Extract parses source by file extension and returns its declarations.
func Extract(ext, source string) ([]Item, error) {
	if ext == ".go" {
		return extractGo(source)
	}
	return extractGeneric(source), nil
}

func extractGo(source string) ([]Item, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", source, 0)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			kind := "func"
			if d.Recv != nil {
				kind = "method"
			}
			items = append(items, Item{Kind: kind, Name: d.Name.Name})
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					items = append(items, Item{Kind: "type", Name: s.Name.Name})
				case *ast.ValueSpec:
					kind := "var"
					if d.Tok == token.CONST {
						kind = "const"
					}
					for _, name := range s.Names {
						if name.Name == "_" {
							continue
						}
						items = append(items, Item{Kind: kind, Name: name.Name})
					}
				}
			}
		}
	}
	return items, nil
}

// genericDecl matches declaration heads in languages we don't parse properly:
// Python def/class, JavaScript function, Rust fn.
var genericDecl = regexp.MustCompile(`^\s*(def|class|function|fn)\s+([A-Za-z_][A-Za-z0-9_]*)`)

var genericKinds = map[string]string{
	"def":      "function",
	"class":    "class",
	"function": "function",
	"fn":       "function",
}

func extractGeneric(source string) []Item {
	var items []Item
	for _, line := range strings.Split(source, "\n") {
		m := genericDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items = append(items, Item{Kind: genericKinds[m[1]], Name: m[2]})
	}
	return items
}

// Names returns just the declaration names, in file order.
func Names(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names
}
