// Package check implements the quiver check subcommand: a write-free
// generation run compared against the file on disk.
package check

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quiverdev/quiver/cmd/quiver/internal/gen"
	"github.com/quiverdev/quiver/quivergen"
	"github.com/quiverdev/quiver/quivergen/sink"
)

type Cmd struct {
	Packages []string `arg:"" optional:"" help:"Package patterns to analyze (default: current directory)."`
	Output   string   `help:"Generated file name." short:"o" default:"quiver_gen.go"`
	Dir      string   `help:"Working directory for package loading." short:"C"`
	Quiet    bool     `help:"Suppress diagnostics." short:"q"`
}

func (c *Cmd) Run() error {
	pkgs := c.Packages
	if len(pkgs) == 0 {
		pkgs = []string{"."}
	}

	mem := sink.NewMemorySink()
	res, err := quivergen.Generate(context.Background(), quivergen.Config{
		Packages: pkgs,
		Dir:      c.Dir,
		Output:   c.Output,
		Sink:     mem,
	})
	if res != nil && !c.Quiet {
		gen.PrintDiagnostics(os.Stderr, res.Diagnostics)
	}
	if err != nil {
		return err
	}

	want := mem.Get(c.Output)
	onDisk, readErr := os.ReadFile(filepath.Join(res.OutputDir, c.Output))
	switch {
	case os.IsNotExist(readErr):
		return fmt.Errorf("%s is missing; run quiver gen", c.Output)
	case readErr != nil:
		return fmt.Errorf("read %s: %w", c.Output, readErr)
	case !bytes.Equal(onDisk, want):
		return fmt.Errorf("%s is stale; run quiver gen", c.Output)
	}

	fmt.Printf("%s is up to date\n", c.Output)
	return nil
}
