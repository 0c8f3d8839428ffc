package testutil

import (
	"math"
	"testing"
)

func TestMaxAbsDiff(t *testing.T) {
	d, err := MaxAbsDiff([]float64{1, 2, 3}, []float64{1, 2.1, 3})
	if err != nil {
		t.Fatalf("MaxAbsDiff error: %v", err)
	}
	if math.Abs(d-0.1) > 1e-15 {
		t.Fatalf("MaxAbsDiff = %v, want 0.1", d)
	}

	d, err = MaxAbsDiff([]complex64{1, complex(3, 4)}, []complex64{1, 0})
	if err != nil || d != 5 {
		t.Fatalf("complex MaxAbsDiff = %v, %v; want 5", d, err)
	}
}

func TestMaxAbsDiffLengthMismatch(t *testing.T) {
	if _, err := MaxAbsDiff([]float32{1}, []float32{1, 2}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestRequireComplexNearlyEqualAcceptsRounding(t *testing.T) {
	got := []complex64{complex(1, 2), complex(3.0000001, -1)}
	want := []complex64{complex(1, 2), complex(3, -1)}
	RequireComplexNearlyEqual(t, got, want, 1e-5)
}
