package kernel

import (
	"fmt"

	"github.com/cwbudde/algo-mstransform/dsp/interp"
	"github.com/cwbudde/algo-mstransform/grid"
)

// Kind tags a transform variant.
type Kind int

const (
	KindCopy Kind = iota
	KindAverage
	KindSmooth
	KindRegrid
	KindAverageSmooth
	KindAverageRegrid
	KindSmoothRegrid
	KindAverageSmoothRegrid
	KindCombine
	KindSplit
)

var kindNames = [...]string{
	KindCopy:                "copy",
	KindAverage:             "average",
	KindSmooth:              "smooth",
	KindRegrid:              "regrid",
	KindAverageSmooth:       "average+smooth",
	KindAverageRegrid:       "average+regrid",
	KindSmoothRegrid:        "smooth+regrid",
	KindAverageSmoothRegrid: "average+smooth+regrid",
	KindCombine:             "combine",
	KindSplit:               "split",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// Input holds the cubes feeding one output row of a window.
type Input struct {
	// Cubes holds one cube per contributing input window, keyed by window id.
	Cubes map[int]*Cube
	// Grid is the window input grid in the output frame. Only regridding
	// transforms read it.
	Grid grid.Grid
}

// Single returns an input of one cube.
func Single(spw int, c *Cube, g grid.Grid) Input {
	return Input{Cubes: map[int]*Cube{spw: c}, Grid: g}
}

func (in Input) single() (*Cube, error) {
	if len(in.Cubes) != 1 {
		return nil, fmt.Errorf("%w: %d input cubes for a single-window transform", ErrShape, len(in.Cubes))
	}
	for _, c := range in.Cubes {
		return c, c.Validate()
	}

	return nil, ErrShape
}

// Transform maps the input cubes of one row to one cube per output window.
// Implementations are the variants of this package.
type Transform interface {
	Kind() Kind
	Apply(in Input) ([]*Cube, error)

	sealed()
}

// RegridParams configures the regrid stage.
type RegridParams struct {
	Output grid.Grid
	Method interp.Method
	Fine   *grid.FineGrid
}

// Copy passes the cube through.
type Copy struct{}

func (*Copy) sealed()    {}
func (*Copy) Kind() Kind { return KindCopy }

// Apply implements Transform.
func (*Copy) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	return []*Cube{c.Clone()}, nil
}

// Average bins Bin channels into one.
type Average struct {
	Bin int
	agg *Aggregator
}

func (*Average) sealed()    {}
func (*Average) Kind() Kind { return KindAverage }

// Apply implements Transform.
func (t *Average) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	return []*Cube{average(c, t.Bin, t.agg)}, nil
}

// Smooth applies Hanning smoothing.
type Smooth struct{}

func (*Smooth) sealed()    {}
func (*Smooth) Kind() Kind { return KindSmooth }

// Apply implements Transform.
func (*Smooth) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	return []*Cube{hanning(c)}, nil
}

// Regrid interpolates onto a new grid.
type Regrid struct {
	RegridParams
	agg *Aggregator
}

func (*Regrid) sealed()    {}
func (*Regrid) Kind() Kind { return KindRegrid }

// Apply implements Transform.
func (t *Regrid) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	out, err := regrid(c, in.Grid, t.Output, t.Method, t.Fine, t.agg)
	if err != nil {
		return nil, err
	}

	return []*Cube{out}, nil
}

// AverageSmooth averages then smooths.
type AverageSmooth struct {
	Bin int
	agg *Aggregator
}

func (*AverageSmooth) sealed()    {}
func (*AverageSmooth) Kind() Kind { return KindAverageSmooth }

// Apply implements Transform.
func (t *AverageSmooth) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	return []*Cube{hanning(average(c, t.Bin, t.agg))}, nil
}

// AverageRegrid averages then regrids.
type AverageRegrid struct {
	Bin int
	RegridParams
	agg *Aggregator
}

func (*AverageRegrid) sealed()    {}
func (*AverageRegrid) Kind() Kind { return KindAverageRegrid }

// Apply implements Transform.
func (t *AverageRegrid) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	out, err := regrid(average(c, t.Bin, t.agg), in.Grid, t.Output, t.Method, t.Fine, t.agg)
	if err != nil {
		return nil, err
	}

	return []*Cube{out}, nil
}

// SmoothRegrid smooths then regrids.
type SmoothRegrid struct {
	RegridParams
	agg *Aggregator
}

func (*SmoothRegrid) sealed()    {}
func (*SmoothRegrid) Kind() Kind { return KindSmoothRegrid }

// Apply implements Transform.
func (t *SmoothRegrid) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	out, err := regrid(hanning(c), in.Grid, t.Output, t.Method, t.Fine, t.agg)
	if err != nil {
		return nil, err
	}

	return []*Cube{out}, nil
}

// AverageSmoothRegrid averages, smooths, then regrids.
type AverageSmoothRegrid struct {
	Bin int
	RegridParams
	agg *Aggregator
}

func (*AverageSmoothRegrid) sealed()    {}
func (*AverageSmoothRegrid) Kind() Kind { return KindAverageSmoothRegrid }

// Apply implements Transform.
func (t *AverageSmoothRegrid) Apply(in Input) ([]*Cube, error) {
	c, err := in.single()
	if err != nil {
		return nil, err
	}

	out, err := regrid(hanning(average(c, t.Bin, t.agg)), in.Grid, t.Output, t.Method, t.Fine, t.agg)
	if err != nil {
		return nil, err
	}

	return []*Cube{out}, nil
}

// Combine merges the cubes of several windows onto the combined grid, then
// applies Then to the merged cube.
type Combine struct {
	Contributions [][]grid.Contribution
	// CombinedID keys the merged cube passed to Then.
	CombinedID int
	Then       Transform
	agg        *Aggregator
}

func (*Combine) sealed()    {}
func (*Combine) Kind() Kind { return KindCombine }

// Apply implements Transform.
func (t *Combine) Apply(in Input) ([]*Cube, error) {
	for _, c := range in.Cubes {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	merged, err := combine(in.Cubes, t.Contributions, t.agg)
	if err != nil {
		return nil, err
	}

	return t.Then.Apply(Single(t.CombinedID, merged, in.Grid))
}

// Split divides the result of Inner into channel ranges, one per output window.
type Split struct {
	Inner Transform
	// Parts holds (start, nchan) per output window.
	Parts [][2]int
}

func (*Split) sealed()    {}
func (*Split) Kind() Kind { return KindSplit }

// Apply implements Transform.
func (t *Split) Apply(in Input) ([]*Cube, error) {
	whole, err := t.Inner.Apply(in)
	if err != nil {
		return nil, err
	}
	if len(whole) != 1 {
		return nil, fmt.Errorf("%w: split of %d cubes", ErrShape, len(whole))
	}

	out := make([]*Cube, len(t.Parts))
	for i, p := range t.Parts {
		if p[0]+p[1] > whole[0].NChan {
			return nil, fmt.Errorf("%w: part %d exceeds %d channels", ErrShape, i, whole[0].NChan)
		}
		out[i] = whole[0].Channels(p[0], p[1])
	}

	return out, nil
}
