package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-mstransform/archive/sqlstore"
	"github.com/cwbudde/algo-mstransform/fault"
)

var inspectHistory bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Summarize an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectHistory, "history", false, "List the HISTORY table")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) (err error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	s, err := sqlstore.Open(args[0], sqlstore.WithLogger(logger))
	if err != nil {
		return fault.IO("mstransform inspect", err, "cannot open %s", args[0])
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	t, err := s.Subtables()
	if err != nil {
		return err
	}
	tiles, err := s.Tiles()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "archive\t%s\n", s.ID())
	fmt.Fprintf(tw, "path\t%s\n", s.Path())
	fmt.Fprintf(tw, "rows\t%d\n", s.NumRows())
	fmt.Fprintf(tw, "columns\t%s\n", s.Columns())
	fmt.Fprintf(tw, "fields\t%d\n", len(t.Fields))
	fmt.Fprintf(tw, "antennas\t%d\n", len(t.Antennas))
	fmt.Fprintf(tw, "polarizations\t%d\n", len(t.Polarizations))
	fmt.Fprintf(tw, "data descriptions\t%d\n", len(t.DataDescriptions))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SPW\tNAME\tFRAME\tNCHAN\tFIRST\tLAST")
	for i, spw := range t.SpectralWindows {
		first, last := 0.0, 0.0
		if n := spw.NumChan(); n > 0 {
			first, last = spw.ChanFreq[0], spw.ChanFreq[n-1]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.6g\t%.6g\n", i, spw.Name, spw.Frame, spw.NumChan(), first, last)
	}

	if len(tiles) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "COLUMN\tNCORR\tNCHAN\tNROWS")
		for _, col := range s.Columns().List() {
			for _, shape := range tiles[col] {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", col, shape.NCorr, shape.NChan, shape.NRows)
			}
		}
	}

	if inspectHistory && len(t.History) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "TIME\tORIGIN\tRUN\tMESSAGE")
		for _, h := range t.History {
			fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", h.Time, h.Origin, h.RunID, strings.ReplaceAll(h.Message, "\n", " "))
		}
	}

	return tw.Flush()
}
