package core

import (
	"math"
	"slices"
)

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// ClampInt limits value to the inclusive range [min, max].
func ClampInt(value, min, max int) int {
	if min > max {
		min, max = max, min
	}

	return int(Clamp(float64(value), float64(min), float64(max)))
}

// NearlyEqual reports whether a and b are equal within eps (relative for large values).
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// WeightToSigma returns 1/sqrt(w), or -1 when w is not positive.
func WeightToSigma(w float64) float64 {
	if w > 0 {
		return 1 / math.Sqrt(w)
	}

	return -1
}

// SigmaToWeight returns 1/sigma², or 0 when sigma is not positive.
func SigmaToWeight(sigma float64) float64 {
	if sigma > 0 {
		return 1 / (sigma * sigma)
	}

	return 0
}

// Median returns the median of values, averaging the two middle elements for
// even lengths. The input is not modified. Empty input returns 0.
func Median(values []float32) float32 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}

	s := slices.Clone(values)
	slices.Sort(s)

	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}

	return 0.5 * (s[mid-1] + s[mid])
}
