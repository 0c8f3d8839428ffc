package main

import (
	"errors"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/archive/sqlstore"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/selection"
	"github.com/cwbudde/algo-mstransform/transform"
)

var planFlags optionFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the spectral plan of a transformation as YAML",
	Long: `Plan resolves the selection and builds the spectral plan, the output
tables and the kernel strategy without writing any row.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	addOptionFlags(planCmd, &planFlags)
	rootCmd.AddCommand(planCmd)
}

type planReport struct {
	RunID    string         `yaml:"run_id"`
	Strategy string         `yaml:"strategy"`
	Layers   []string       `yaml:"layers"`
	Spws     []int          `yaml:"selected_spws"`
	Windows  []windowReport `yaml:"windows"`
	Outputs  []outputReport `yaml:"outputs"`
	DDIs     map[int][]int  `yaml:"data_descriptions"`
	Maps     []mapReport    `yaml:"index_maps"`
	StokesI  int            `yaml:"stokes_pol,omitempty"`
}

type windowReport struct {
	Inputs       []int   `yaml:"inputs"`
	Bin          int     `yaml:"bin"`
	InChannels   int     `yaml:"input_channels"`
	OutChannels  int     `yaml:"output_channels"`
	InFrame      string  `yaml:"in_frame"`
	OutFrame     string  `yaml:"out_frame"`
	Regrid       string  `yaml:"regrid,omitempty"`
	Fine         bool    `yaml:"fine_grid,omitempty"`
	WeightFactor float64 `yaml:"weight_factor"`
}

type mapReport struct {
	Table    string `yaml:"table"`
	Identity bool   `yaml:"identity,omitempty"`
	Offset   int    `yaml:"offset,omitempty"`
	IDs      []int  `yaml:"ids,flow"`
}

type outputReport struct {
	Spw       int     `yaml:"spw"`
	Window    int     `yaml:"window"`
	Start     int     `yaml:"start"`
	NChan     int     `yaml:"nchan"`
	FirstFreq float64 `yaml:"first_freq"`
	LastFreq  float64 `yaml:"last_freq"`
}

// newPlanReport summarizes a manager after Setup.
func newPlanReport(m *transform.Manager) planReport {
	p := m.Plan()
	r := planReport{
		RunID:    m.RunID(),
		Strategy: m.Strategy().String(),
		Layers:   m.Layers(),
		Spws:     slices.Clone(m.Resolution().Spws),
		DDIs:     make(map[int][]int),
	}

	for _, w := range p.Windows {
		wr := windowReport{
			Inputs:       slices.Clone(w.Spws),
			Bin:          w.Bin,
			InChannels:   len(w.Input.Freq),
			OutChannels:  len(w.Output.Freq),
			InFrame:      w.InFrame.String(),
			OutFrame:     w.OutFrame.String(),
			Fine:         w.Fine != nil,
			WeightFactor: w.WeightFactor,
		}
		if w.Regrid != nil {
			wr.Regrid = w.Regrid.Mode.String()
		}
		r.Windows = append(r.Windows, wr)
	}

	for i, o := range p.Outputs {
		or := outputReport{Spw: i, Window: o.Window, Start: o.Start, NChan: o.NChan}
		if n := len(o.Spw.ChanFreq); n > 0 {
			or.FirstFreq, or.LastFreq = o.Spw.ChanFreq[0], o.Spw.ChanFreq[n-1]
		}
		r.Outputs = append(r.Outputs, or)
	}

	for k := selection.TableSpw; k <= selection.TablePolarization; k++ {
		im := m.Resolution().Maps.Get(k)
		r.Maps = append(r.Maps, mapReport{
			Table:    k.String(),
			Identity: im.Identity(),
			Offset:   im.Offset(),
			IDs:      im.IDs(),
		})
	}

	l := m.Layout()
	for in, out := range l.DDI {
		r.DDIs[in] = slices.Clone(out)
	}
	if l.StokesPol >= 0 {
		r.StokesI = l.StokesPol
	}

	return r
}

func runPlan(cmd *cobra.Command, _ []string) (err error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	opts, err := loadOptions(cmd, &planFlags)
	if err != nil {
		return err
	}
	if opts.Vis == "" {
		return fault.Configuration("mstransform plan", "no input archive (vis)")
	}

	src, err := sqlstore.Open(opts.Vis, sqlstore.WithLogger(logger))
	if err != nil {
		return fault.IO("mstransform plan", err, "cannot open %s", opts.Vis)
	}
	defer func() { err = errors.Join(err, src.Close()) }()

	m := transform.New(opts, transform.WithLogger(logger))
	if err := m.Setup(src, archive.New(nil, 0)); err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(newPlanReport(m)); err != nil {
		return err
	}

	return enc.Close()
}
