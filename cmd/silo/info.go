package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/silo/config"
	"github.com/hupe1980/silo/snapshot"
)

func newInfoCmd() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print information about the current snapshot",
		Flags: []cli.Flag{
			confFlag(),
			&cli.BoolFlag{
				Name:  "details",
				Usage: "load the snapshot and print bitmap container statistics",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("conf"))
			if err != nil {
				return err
			}
			return printInfo(c, cfg, c.Bool("details"))
		},
	}
}

func printInfo(c *cli.Context, cfg *config.Config, details bool) error {
	w := c.App.Writer
	store, err := cfg.Storage.OpenStore(c.Context)
	if err != nil {
		return err
	}
	dir, err := snapshot.ReadCurrent(c.Context, store)
	if err != nil {
		return err
	}
	m, err := snapshot.ReadManifest(c.Context, store, dir)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "Data version %s\n", m.DataVersion)
	fmt.Fprintf(w, "created:     %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "compression: %s\n", m.Compression)
	fmt.Fprintf(w, "sequences:   %d\n", m.SequenceCount())
	fmt.Fprintf(w, "partitions:  %d\n", len(m.Partitions))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nFILE\tSEQUENCES\tBYTES")
	for _, p := range m.Partitions {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", p.File, p.SequenceCount, p.Size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(m.LineageFiles) > 0 {
		columns := make([]string, 0, len(m.LineageFiles))
		for column := range m.LineageFiles {
			columns = append(columns, column)
		}
		sort.Strings(columns)
		fmt.Fprintf(w, "lineage columns: %v\n", columns)
	}

	if !details {
		return nil
	}

	snap, err := snapshot.LoadDir(c.Context, store, dir)
	if err != nil {
		color.New(color.FgRed).Fprintf(w, "load failed: %v\n", err)
		return err
	}
	return printDetails(w, snap, cfg.Info.SectionLength)
}

func printDetails(w io.Writer, snap *snapshot.Snapshot, sectionLength int) error {
	info := snap.Info()
	fmt.Fprintf(w, "\ntotal bitmap size: %d\n", info.TotalSize)
	fmt.Fprintf(w, "N bitmap size:     %d\n", info.NBitmapsSize)

	detailed, ok := snap.DetailedInfo(sectionLength)
	if !ok {
		color.New(color.FgYellow).Fprintln(w, "no nucleotide sequence, skipping container statistics")
		return nil
	}

	symbols := make([]string, 0, len(detailed.BitmapSizePerSymbol))
	for s := range detailed.BitmapSizePerSymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSYMBOL\tBITMAP BYTES")
	for _, s := range symbols {
		fmt.Fprintf(tw, "%s\t%d\n", s, detailed.BitmapSizePerSymbol[s])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	cs := detailed.BitmapContainerSizePerGenomeSection
	fmt.Fprintf(w, "section length:  %d\n", cs.SectionLength)
	fmt.Fprintf(w, "frozen size:     %d\n", cs.TotalBitmapSizeFrozen)
	fmt.Fprintf(w, "computed size:   %d\n", cs.TotalBitmapSizeComputed)
	return nil
}
