package reindex

import (
	"slices"

	"github.com/cwbudde/algo-mstransform/selection"
)

// Layout tells the writer where input rows go.
type Layout struct {
	// DDI maps an input data description to its output data descriptions,
	// one per output window, in output window order.
	DDI map[int][]int
	// Spw maps an input window to its output windows.
	Spw map[int][]int
	// AveragedPol marks input polarization setups averaged into Stokes I.
	AveragedPol map[int]bool
	// StokesPol is the id of the Stokes I setup, or -1.
	StokesPol int
	// NCorr is the correlation count of each output data description.
	NCorr map[int]int
	// Field, Observation and State renumber the matching row ids.
	Field       selection.IndexMap
	Observation selection.IndexMap
	State       selection.IndexMap
	Combined    bool
	Split       bool
}

// OutputDDIs returns the output data descriptions of input ddi.
func (l *Layout) OutputDDIs(ddi int) ([]int, bool) {
	out, ok := l.DDI[ddi]
	return out, ok
}

// Group returns the input data descriptions whose rows merge into the same
// output rows as ddi: several when windows are combined, ddi alone otherwise.
func (l *Layout) Group(ddi int) []int {
	out, ok := l.DDI[ddi]
	if !ok {
		return nil
	}
	if !l.Combined {
		return []int{ddi}
	}

	var group []int
	for in, o := range l.DDI {
		if slices.Equal(o, out) {
			group = append(group, in)
		}
	}
	slices.Sort(group)

	return group
}
