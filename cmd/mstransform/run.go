package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/archive/sqlstore"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/transform"
)

var runFlags optionFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Transform an archive",
	Long: `Run reads the input archive named by vis, applies the configured
transformation and writes the output archive named by outputvis.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	addOptionFlags(runCmd, &runFlags)
	runCmd.Flags().String("outputvis", "", "Output archive (must not exist)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) (err error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	opts, err := loadOptions(cmd, &runFlags)
	if err != nil {
		return err
	}
	if opts.Vis == "" {
		return fault.Configuration("mstransform run", "no input archive (vis)")
	}

	src, err := sqlstore.Open(opts.Vis, sqlstore.WithLogger(logger))
	if err != nil {
		return fault.IO("mstransform run", err, "cannot open %s", opts.Vis)
	}
	defer func() { err = errors.Join(err, src.Close()) }()

	var dst archive.Sink
	if !opts.BufferMode {
		if opts.OutputVis == "" {
			return fault.Configuration("mstransform run", "no output archive (outputvis)")
		}
		out, cerr := sqlstore.Create(opts.OutputVis, sqlstore.WithLogger(logger))
		if cerr != nil {
			return fault.IO("mstransform run", cerr, "cannot create %s", opts.OutputVis)
		}
		defer func() { err = errors.Join(err, out.Close()) }()
		dst = out
	}

	m := transform.New(opts, transform.WithLogger(logger))
	if err := m.Setup(src, dst); err != nil {
		return err
	}

	s, err := m.Run()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s: %d buffers, %d rows read, %d rows written\n", m.RunID(), s.Buffers, s.RowsRead, s.RowsWritten)
	if opts.BufferMode && err == nil {
		fmt.Fprintf(w, "buffer mode: %d rows kept in memory\n", len(m.Writer().Scratch().Rows))
	}

	return err
}
