// Package gen implements the quiver gen subcommand.
package gen

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/quiverdev/quiver/quivergen"
	"github.com/quiverdev/quiver/quivergen/ir"
)

type Cmd struct {
	Packages []string `arg:"" optional:"" help:"Package patterns to analyze (default: current directory). The first pattern names the output package."`
	Output   string   `help:"Generated file name." short:"o" default:"quiver_gen.go"`
	Dir      string   `help:"Working directory for package loading." short:"C"`
	Quiet    bool     `help:"Suppress diagnostics." short:"q"`
}

func (c *Cmd) Run() error {
	pkgs := c.Packages
	if len(pkgs) == 0 {
		pkgs = []string{"."}
	}

	res, err := quivergen.Generate(context.Background(), quivergen.Config{
		Packages: pkgs,
		Dir:      c.Dir,
		Output:   c.Output,
	})
	if res != nil && !c.Quiet {
		PrintDiagnostics(os.Stderr, res.Diagnostics)
	}
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", c.Output)
	return nil
}

// PrintDiagnostics writes diagnostics one per line in the conventional
// file:line: form so editors can jump to them.
func PrintDiagnostics(w io.Writer, diags []ir.Diagnostic) {
	for _, d := range diags {
		if d.Pos.Filename != "" {
			fmt.Fprintf(w, "%s:%d: %s: %s\n", d.Pos.Filename, d.Pos.Line, d.Code, d.Message)
		} else {
			fmt.Fprintf(w, "%s: %s\n", d.Code, d.Message)
		}
	}
}
