package testutil

import (
	"fmt"
	"math"
	"testing"
)

// Cell is an element type of a visibility column or a frequency axis.
type Cell interface {
	~float32 | ~float64 | ~complex64
}

func absDiff[T Cell](a, b T) float64 {
	switch d := any(a - b).(type) {
	case complex64:
		return math.Hypot(float64(real(d)), float64(imag(d)))
	case float32:
		return math.Abs(float64(d))
	case float64:
		return math.Abs(d)
	}

	return math.NaN()
}

// MaxAbsDiff returns the largest element distance between a and b. Complex
// cells are compared by modulus.
func MaxAbsDiff[T Cell](a, b []T) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}

	worst := 0.0
	for i := range a {
		worst = math.Max(worst, absDiff(a[i], b[i]))
	}

	return worst, nil
}

func requireNear[T Cell](t *testing.T, got, want []T, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if d := absDiff(got[i], want[i]); !(d <= eps) {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireSliceNearlyEqual fails t unless got matches want within eps, e.g.
// channel frequencies.
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	requireNear(t, got, want, eps)
}

// RequireComplexNearlyEqual compares visibility cells by modulus of the difference.
func RequireComplexNearlyEqual(t *testing.T, got, want []complex64, eps float64) {
	t.Helper()
	requireNear(t, got, want, eps)
}

// RequireFloat32NearlyEqual compares weight or sigma cells.
func RequireFloat32NearlyEqual(t *testing.T, got, want []float32, eps float64) {
	t.Helper()
	requireNear(t, got, want, eps)
}

// RequireFinite fails t if any visibility has a NaN or Inf part.
func RequireFinite(t *testing.T, data []complex64) {
	t.Helper()
	for i, v := range data {
		if re, im := float64(real(v)), float64(imag(v)); math.IsNaN(re+im) || math.IsInf(re, 0) || math.IsInf(im, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}
