package model

import (
	"fmt"
	"go/types"
	"sort"
)

// Imports assigns stable package qualifiers for one generation run and
// renders type expressions relative to the output package. Packages with
// colliding names get numbered aliases, deterministically in first-use
// order.
type Imports struct {
	local  string            // import path of the output package
	byPath map[string]string // path -> assigned name
	alias  map[string]bool   // path -> needs explicit alias
	taken  map[string]string // name -> path
}

// Import is one entry of the generated import block.
type Import struct {
	Path      string
	Name      string // "" when the package's own name is used
	Qualifier string // name the rendered code refers to the package by
}

// NewImports creates a tracker for a file emitted into the package with
// the given import path.
func NewImports(localPath string) *Imports {
	return &Imports{
		local:  localPath,
		byPath: make(map[string]string),
		alias:  make(map[string]bool),
		taken:  make(map[string]string),
	}
}

// Name records a dependency on path and returns the qualifier to use, ""
// for the local package.
func (im *Imports) Name(path, pkgName string) string {
	if path == im.local {
		return ""
	}
	if name, ok := im.byPath[path]; ok {
		return name
	}

	name := pkgName
	for n := 2; ; n++ {
		if _, clash := im.taken[name]; !clash {
			break
		}
		name = fmt.Sprintf("%s%d", pkgName, n)
		im.alias[path] = true
	}
	im.byPath[path] = name
	im.taken[name] = path
	return name
}

// Render renders a type expression qualified relative to the output
// package, recording every referenced package. Generic type parameters
// render as their bare names.
func (im *Imports) Render(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string {
		return im.Name(p.Path(), p.Name())
	})
}

// List returns the recorded imports sorted by path.
func (im *Imports) List() []Import {
	out := make([]Import, 0, len(im.byPath))
	for path, name := range im.byPath {
		imp := Import{Path: path, Qualifier: name}
		if im.alias[path] {
			imp.Name = name
		}
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
