package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/quiverdev/quiver/cmd/quiver/internal/check"
	"github.com/quiverdev/quiver/cmd/quiver/internal/gen"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate dispatch wiring for the given packages."`
	Check   check.Cmd  `cmd:"" help:"Verify the generated wiring is present and current without writing files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("quiver"),
		kong.Description("Quiver CLI for dispatch wiring generation."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
