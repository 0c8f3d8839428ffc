package selection

import (
	"fmt"
	"slices"
)

// ChannelRange is an inclusive channel range with a stride.
type ChannelRange struct {
	Start int
	Stop  int
	Step  int
}

// Count returns the number of channels in the range.
func (r ChannelRange) Count() int {
	if r.Stop < r.Start {
		return 0
	}

	step := max(r.Step, 1)
	return (r.Stop-r.Start)/step + 1
}

func (r ChannelRange) String() string {
	if r.Step > 1 {
		return fmt.Sprintf("%d~%d^%d", r.Start, r.Stop, r.Step)
	}

	return fmt.Sprintf("%d~%d", r.Start, r.Stop)
}

func (r ChannelRange) appendIndices(dst []int) []int {
	step := max(r.Step, 1)
	for c := r.Start; c <= r.Stop; c += step {
		dst = append(dst, c)
	}

	return dst
}

// MergeRanges merges overlapping sub-ranges of one window into a minimal,
// ascending, disjoint list of arithmetic runs.
func MergeRanges(ranges []ChannelRange) []ChannelRange {
	var idx []int
	for _, r := range ranges {
		idx = r.appendIndices(idx)
	}

	slices.Sort(idx)
	idx = slices.Compact(idx)

	return compress(idx)
}

// compress greedily packs ascending unique indices into arithmetic runs.
func compress(idx []int) []ChannelRange {
	var out []ChannelRange
	for i := 0; i < len(idx); {
		if i == len(idx)-1 {
			out = append(out, ChannelRange{Start: idx[i], Stop: idx[i], Step: 1})
			break
		}

		step := idx[i+1] - idx[i]
		j := i + 1
		for j+1 < len(idx) && idx[j+1]-idx[j] == step {
			j++
		}

		// a step >1 run of two elements followed by a denser run reads better as singles
		if step > 1 && j == i+1 && j+1 < len(idx) && idx[j+1]-idx[j] == 1 {
			out = append(out, ChannelRange{Start: idx[i], Stop: idx[i], Step: 1})
			i++
			continue
		}

		out = append(out, ChannelRange{Start: idx[i], Stop: idx[j], Step: step})
		i = j + 1
	}

	return out
}

// CountChannels returns the summed width of ranges.
func CountChannels(ranges []ChannelRange) int {
	n := 0
	for _, r := range ranges {
		n += r.Count()
	}

	return n
}

// ChannelIndices expands ranges into channel indices.
func ChannelIndices(ranges []ChannelRange) []int {
	var out []int
	for _, r := range ranges {
		out = r.appendIndices(out)
	}

	return out
}
