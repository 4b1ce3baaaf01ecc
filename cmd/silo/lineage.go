package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/silo/lineage"
)

func newLineageCmd() *cli.Command {
	return &cli.Command{
		Name:  "lineage",
		Usage: "Work with lineage definition files",
		Subcommands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Parse a lineage definition and report errors",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one lineage definition file, got %d arguments", c.NArg())
					}
					return validateLineages(c, c.Args().First())
				},
			},
		},
	}
}

func validateLineages(c *cli.Context, path string) error {
	w := c.App.Writer
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ix, err := lineage.Parse(data)
	if err != nil {
		color.New(color.FgRed).Fprintf(w, "%s: invalid\n", path)
		return err
	}
	aliases := 0
	for _, name := range ix.Lineages() {
		aliases += len(ix.Aliases(name))
	}
	color.New(color.FgGreen).Fprintf(w, "%s: ok\n", path)
	fmt.Fprintf(w, "%d lineages, %d aliases\n", ix.Len(), aliases)
	return nil
}
