package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/internal/config"
	"github.com/cwbudde/algo-mstransform/transform"
)

// optionFlags are shared by the commands that build a transformation.
type optionFlags struct {
	config string
	set    []string
}

// addOptionFlags registers --config, --set and a flag for the most common
// option keys. Flag names equal option keys.
func addOptionFlags(cmd *cobra.Command, of *optionFlags) {
	f := cmd.Flags()
	f.StringVarP(&of.config, "config", "c", "", "Parameter file (yaml, json or toml)")
	f.StringArrayVar(&of.set, "set", nil, "Option override key=value (repeatable)")

	f.String("vis", "", "Input archive")
	f.String("datacolumn", "corrected", "Column(s) to transform: data, corrected, model, all, ...")
	f.String("field", "", "Field selection")
	f.String("spw", "", "Spectral window and channel selection")
	f.String("antenna", "", "Baseline selection")
	f.String("scan", "", "Scan selection")
	f.String("timerange", "", "Time range selection")
	f.String("correlation", "", "Correlation selection")
	f.Bool("chanaverage", false, "Average channels")
	f.String("chanbin", "", "Channel bin width, one value or one per window")
	f.Bool("combinespws", false, "Combine the selected windows into one")
	f.Int("nspw", 1, "Split the output into this many windows")
	f.Bool("regridms", false, "Regrid onto a new channel grid")
	f.String("mode", "", "Regrid mode: channel, frequency, velocity")
	f.String("outframe", "", "Output spectral frame")
	f.Bool("hanning", false, "Hanning-smooth the spectra")
	f.Bool("timeaverage", false, "Average in time")
	f.String("timebin", "", "Time bin, e.g. 30s or 2min")
	f.Bool("polaverage", false, "Average parallel hands into Stokes I")
	f.Bool("buffermode", false, "Transform into a scratch table instead of an output archive")
}

// loadOptions merges every option source of cmd and parses the result.
func loadOptions(cmd *cobra.Command, of *optionFlags) (transform.Options, error) {
	m, err := config.Load(config.Source{
		File:  of.config,
		Flags: cmd.Flags(),
		Set:   of.set,
		Keys:  transform.Keys(),
	})
	if err != nil {
		return transform.Options{}, fault.Wrap(fault.KindConfiguration, "mstransform", err, "loading options")
	}

	return transform.ParseOptions(m)
}
