// Command bifrost serves the demo API and calls bifrost endpoints from the
// command line.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Serve   ServeCmd   `cmd:"" help:"Serve the demo API and devtools over HTTP."`
	Call    CallCmd    `cmd:"" help:"Call an endpoint of a running server."`
	Key     KeyCmd     `cmd:"" help:"Print the cache key of a call without sending it."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("bifrost"),
		kong.Description("Serve and call bifrost endpoint trees."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
