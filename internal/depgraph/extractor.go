// Package depgraph implements C5, the dependency analyzer: a directed graph
// over indexed files where an edge u -> v means file u references the module
// exported by file v, plus blast-radius queries over that graph (spec §4.5).
package depgraph

import (
	"go/parser"
	"go/token"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// ImportExtractor is the pluggable collaborator described in spec §4.5: it
// turns a file body into the set of module names it imports, and a file
// path into the module name it exports. Only the graph semantics built on
// top of this interface are specified; extraction itself is delegated so
// other languages can supply their own implementation.
type ImportExtractor interface {
	// ExtractImports returns the set of module names referenced by body.
	ExtractImports(body []byte) (map[string]bool, error)

	// PathToModule maps a repo-relative path to the module name it
	// exports, or ("", false) if the path exports nothing resolvable
	// (e.g. not a recognized source file).
	PathToModule(path string) (string, bool)
}

// GoExtractor is the default ImportExtractor for Go source trees. It uses
// go/parser (syntax only; a import list needs no type-checker) to list a
// file's imports, and golang.org/x/mod/modfile to resolve the target
// repo's own module path for PathToModule.
type GoExtractor struct {
	modulePath string
}

// NewGoExtractor builds a GoExtractor. goModBody is the contents of the
// target repo's go.mod; if parsing fails or goModBody is empty, PathToModule
// falls back to treating each directory as its own module, keyed by its
// slash-separated relative path.
func NewGoExtractor(goModBody []byte) *GoExtractor {
	ex := &GoExtractor{}
	if len(goModBody) == 0 {
		return ex
	}
	mf, err := modfile.Parse("go.mod", goModBody, nil)
	if err == nil && mf.Module != nil {
		ex.modulePath = mf.Module.Mod.Path
	}
	return ex
}

// ExtractImports parses body as Go source and returns its import paths.
func (g *GoExtractor) ExtractImports(body []byte) (map[string]bool, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", body, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	imports := make(map[string]bool, len(f.Imports))
	for _, spec := range f.Imports {
		value := strings.Trim(spec.Path.Value, `"`)
		imports[value] = true
	}
	return imports, nil
}

// PathToModule maps a relative file path to the Go import path of the
// package containing it: module path + package directory.
func (g *GoExtractor) PathToModule(filePath string) (string, bool) {
	if !strings.HasSuffix(filePath, ".go") {
		return "", false
	}
	dir := path.Dir(path.Clean(filepath.ToSlash(filePath)))
	if g.modulePath == "" {
		if dir == "." {
			return ".", true
		}
		return dir, true
	}
	if dir == "." {
		return g.modulePath, true
	}
	return g.modulePath + "/" + dir, true
}
