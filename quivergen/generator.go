// Package quivergen generates dispatch wiring from marker directives.
// It loads the target packages, analyzes decorator and handler
// declarations, plans each handler's decorator pipeline, and emits a
// single generated file into the output package.
package quivergen

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/quiverdev/quiver/quivergen/analyze"
	"github.com/quiverdev/quiver/quivergen/emit"
	"github.com/quiverdev/quiver/quivergen/ir"
	"github.com/quiverdev/quiver/quivergen/model"
	"github.com/quiverdev/quiver/quivergen/plan"
	"github.com/quiverdev/quiver/quivergen/sink"
)

// Config holds the configuration for one generation run.
type Config struct {
	// Packages are the Go package patterns to analyze. The first pattern
	// names the output package; the generated file lands there.
	Packages []string

	// Dir is the working directory for package loading. Defaults to the
	// process working directory.
	Dir string

	// Output is the generated file name within the output package
	// directory. Defaults to "quiver_gen.go".
	Output string

	// Sink receives the generated file. Defaults to a FilesystemSink
	// rooted at the output package directory.
	Sink sink.OutputSink
}

// Result is the outcome of a generation run.
type Result struct {
	// Files maps output paths to rendered content, whether or not a
	// sink consumed them.
	Files map[string][]byte

	// Diagnostics are the non-fatal issues found along the way. A
	// diagnostic isolates its handler or decorator; the rest of the
	// output is unaffected.
	Diagnostics []ir.Diagnostic

	// OutputDir is the resolved directory of the output package.
	OutputDir string
}

// Generate runs the full pipeline: load, analyze, plan, emit, write.
// Analysis problems surface as Result.Diagnostics, not errors; only a
// failure to load or to write is fatal.
func Generate(ctx context.Context, cfg Config) (*Result, error) {
	if len(cfg.Packages) == 0 {
		return nil, fmt.Errorf("quivergen: at least one package pattern is required")
	}
	output := cfg.Output
	if output == "" {
		output = "quiver_gen.go"
	}

	m, err := model.Load(ctx, model.LoadOptions{
		Packages: cfg.Packages,
		Dir:      cfg.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("quivergen: load: %w", err)
	}

	res := &Result{Files: make(map[string][]byte)}
	res.Diagnostics = append(res.Diagnostics, m.Diagnostics...)
	if len(m.Output.GoFiles) > 0 {
		res.OutputDir = filepath.Dir(m.Output.GoFiles[0])
	}

	im := model.NewImports(m.Output.PkgPath)

	defs, diags := analyze.Decorators(m, im)
	res.Diagnostics = append(res.Diagnostics, diags...)

	handlers, diags := analyze.Handlers(m, im)
	res.Diagnostics = append(res.Diagnostics, diags...)

	plans := make([]*plan.Plan, 0, len(handlers))
	for _, h := range handlers {
		p, diags := plan.Build(h, defs)
		res.Diagnostics = append(res.Diagnostics, diags...)
		plans = append(plans, p)
	}

	src, diags := emit.File(m.Output.Name, im, defs, plans)
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Files[output] = src

	sortDiagnostics(res.Diagnostics)

	out := cfg.Sink
	if out == nil {
		dir := res.OutputDir
		if dir == "" {
			dir = "."
		}
		out = sink.NewFilesystemSink(dir)
	}
	if err := out.WriteFile(ctx, output, src); err != nil {
		return res, fmt.Errorf("quivergen: write %s: %w", output, err)
	}

	return res, nil
}

// sortDiagnostics orders diagnostics by source position, then code, so
// repeated runs report identically.
func sortDiagnostics(diags []ir.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Pos.Filename != b.Pos.Filename {
			return a.Pos.Filename < b.Pos.Filename
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Code < b.Code
	})
}
