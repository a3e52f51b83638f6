// Package model wraps the go/packages declaration model behind the small
// query surface the quivergen analysis stages need: the named type
// declarations of the scanned packages, their attached quiver directives,
// and their candidate constructors.
package model

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/quiverdev/quiver/internal/directive"
	"github.com/quiverdev/quiver/quivergen/ir"
	"golang.org/x/tools/go/packages"
)

// LoadOptions configures package loading.
type LoadOptions struct {
	// Packages are the Go package patterns to analyze. The first pattern
	// names the output package that generated code is written into.
	Packages []string

	// Dir is the working directory for package resolution. Empty means
	// the current directory.
	Dir string
}

// Model is the read-only declaration model of the loaded packages.
type Model struct {
	// Output is the package generated code is emitted into.
	Output *packages.Package

	// Types are all named type declarations across the loaded packages,
	// in deterministic syntactic order (package load order, then file,
	// then position).
	Types []*TypeDecl

	// Diagnostics collects load and directive parse problems. Load
	// errors do not abort the pass; analysis continues on best-effort
	// type information.
	Diagnostics []ir.Diagnostic

	pkgs   []*packages.Package
	byName map[*types.TypeName]*TypeDecl
	ctors  map[*types.TypeName][]*Constructor
}

// TypeDecl is one named type declaration.
type TypeDecl struct {
	Obj        *types.TypeName
	Named      *types.Named
	Spec       *ast.TypeSpec
	Directives []directive.Directive
	Pkg        *packages.Package
	Pos        token.Position
}

// Directive returns the declaration's first directive of the given kind,
// or nil.
func (t *TypeDecl) Directive(kind directive.Kind) *directive.Directive {
	for i := range t.Directives {
		if t.Directives[i].Kind == kind {
			return &t.Directives[i]
		}
	}
	return nil
}

// Uses returns the declaration's //quiver:use directives in syntactic
// order.
func (t *TypeDecl) Uses() []directive.Directive {
	var out []directive.Directive
	for _, d := range t.Directives {
		if d.Kind == directive.KindUse {
			out = append(out, d)
		}
	}
	return out
}

// Constructor is a package-level function returning the declared type.
type Constructor struct {
	Decl *ast.FuncDecl
	Func *types.Func
	Sig  *types.Signature

	// ReturnsPointer reports whether the result is *T rather than T.
	ReturnsPointer bool
}

// Load loads the requested packages and builds the declaration model.
func Load(ctx context.Context, opts LoadOptions) (*Model, error) {
	if len(opts.Packages) == 0 {
		return nil, fmt.Errorf("no packages specified")
	}

	cfg := &packages.Config{
		Context: ctx,
		Dir:     opts.Dir,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
	}

	pkgs, err := packages.Load(cfg, opts.Packages...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %v", opts.Packages)
	}

	m := &Model{
		pkgs:   pkgs,
		byName: make(map[*types.TypeName]*TypeDecl),
		ctors:  make(map[*types.TypeName][]*Constructor),
	}

	// packages.Load returns packages in dependency order, not input
	// order; the output package is the one matching the first pattern.
	m.Output = pkgs[0]
	for _, pkg := range pkgs {
		if pkg.PkgPath == opts.Packages[0] {
			m.Output = pkg
			break
		}
	}

	for _, pkg := range pkgs {
		// Package errors become diagnostics: a half-broken input must
		// not abort generation for the healthy declarations.
		for _, perr := range pkg.Errors {
			m.Diagnostics = append(m.Diagnostics, ir.Diagnostic{
				Code:    "load_error",
				Message: fmt.Sprintf("package %s: %v", pkg.PkgPath, perr),
			})
		}
		m.collectTypes(pkg)
	}
	for _, pkg := range pkgs {
		m.collectConstructors(pkg)
	}

	return m, nil
}

// Lookup returns the declaration for a named type's object, or nil when
// the type was not declared in a loaded package.
func (m *Model) Lookup(obj *types.TypeName) *TypeDecl {
	return m.byName[obj]
}

// Constructors returns the candidate constructors of a declaration in
// source order.
func (m *Model) Constructors(t *TypeDecl) []*Constructor {
	return m.ctors[t.Obj]
}

// Constructor picks the declaration's construction entry point: the
// constructor with the most parameters, ties broken by declaration order.
// Returns nil when the type has no constructor.
func (m *Model) Constructor(t *TypeDecl) *Constructor {
	var best *Constructor
	for _, c := range m.ctors[t.Obj] {
		if best == nil || c.Sig.Params().Len() > best.Sig.Params().Len() {
			best = c
		}
	}
	return best
}

func (m *Model) collectTypes(pkg *packages.Package) {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				obj, ok := pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
				if !ok {
					continue
				}
				named, ok := obj.Type().(*types.Named)
				if !ok {
					continue
				}

				td := &TypeDecl{
					Obj:   obj,
					Named: named,
					Spec:  ts,
					Pkg:   pkg,
					Pos:   pkg.Fset.Position(ts.Pos()),
				}
				td.Directives = m.parseDirectives(pkg, gd.Doc, ts.Doc)

				m.Types = append(m.Types, td)
				m.byName[obj] = td
			}
		}
	}
}

// parseDirectives reads quiver directives from the declaration's doc
// groups. Both the GenDecl doc and the TypeSpec doc are scanned,
// matching where gofmt places comments for single and grouped type decls.
func (m *Model) parseDirectives(pkg *packages.Package, groups ...*ast.CommentGroup) []directive.Directive {
	var out []directive.Directive
	for _, cg := range groups {
		if cg == nil {
			continue
		}
		for _, c := range cg.List {
			if !directive.IsDirective(c.Text) {
				continue
			}
			d, err := directive.Parse(c.Text, pkg.Fset.Position(c.Pos()))
			if err != nil {
				m.Diagnostics = append(m.Diagnostics, ir.Diagnostic{
					Code:    "bad_directive",
					Message: err.Error(),
					Pos:     pkg.Fset.Position(c.Pos()),
				})
				continue
			}
			out = append(out, *d)
		}
	}
	return out
}

func (m *Model) collectConstructors(pkg *packages.Package) {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil {
				continue
			}
			fn, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
			if !ok {
				continue
			}
			sig, ok := fn.Type().(*types.Signature)
			if !ok {
				continue
			}

			obj, ptr, ok := constructedType(sig)
			if !ok {
				continue
			}
			td := m.byName[obj]
			if td == nil {
				continue
			}
			m.ctors[obj] = append(m.ctors[obj], &Constructor{
				Decl:           fd,
				Func:           fn,
				Sig:            sig,
				ReturnsPointer: ptr,
			})
		}
	}
}

// constructedType reports the named type a signature constructs: exactly
// one result of T or *T. Fallible constructors are not construction entry
// points; generated factories have nowhere to send the error.
func constructedType(sig *types.Signature) (obj *types.TypeName, ptr bool, ok bool) {
	res := sig.Results()
	if res.Len() != 1 {
		return nil, false, false
	}

	t := res.At(0).Type()
	if p, isPtr := t.(*types.Pointer); isPtr {
		ptr = true
		t = p.Elem()
	}
	named, isNamed := t.(*types.Named)
	if !isNamed {
		return nil, false, false
	}
	return named.Origin().Obj(), ptr, true
}
