// Command silo serves genomic sequence queries over HTTP from snapshots kept
// in a blob store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// VERSION go build -ldflags "-X main.VERSION=x.x.x"
var VERSION = "not specified"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(w io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "silo"
	app.Version = VERSION
	app.Usage = "Sequence Indexing engine for Large Order of genomic data"
	app.Writer = w
	app.ErrWriter = w
	app.Commands = []*cli.Command{
		newServeCmd(),
		newInfoCmd(),
		newLineageCmd(),
	}
	return app
}

func confFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "conf",
		Aliases: []string{"c", "config"},
		Usage:   "specify configuration file(.json,.yaml,.toml)",
		EnvVars: []string{"SILO_CONFIG"},
	}
}
