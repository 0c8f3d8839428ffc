package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min      float64
		max      float64
		expected float64
	}{
		{name: "inside", value: 0.5, min: 0, max: 1, expected: 0.5},
		{name: "below", value: -1, min: 0, max: 1, expected: 0},
		{name: "above", value: 2, min: 0, max: 1, expected: 1},
		{name: "swapped", value: 2, min: 1, max: 0, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.value, tt.min, tt.max)
			if got != tt.expected {
				t.Fatalf("Clamp() = %v, want %v", got, tt.expected)
			}
		})
	}

	if got := ClampInt(12, 1, 8); got != 8 {
		t.Fatalf("ClampInt = %d, want 8", got)
	}
}

func TestNearlyEqual(t *testing.T) {
	if !NearlyEqual(1.0, 1.0+1e-13, 1e-12) {
		t.Fatal("expected values to be nearly equal")
	}
	if NearlyEqual(1.0, 1.1, 1e-3) {
		t.Fatal("expected values to differ")
	}
	if !NearlyEqual(1.4e9, 1.4e9+1e-4, 1e-12) {
		t.Fatal("expected relative tolerance for large values")
	}
}

func TestWeightSigmaConversions(t *testing.T) {
	if got := WeightToSigma(4); got != 0.5 {
		t.Fatalf("WeightToSigma(4) = %v", got)
	}
	if got := WeightToSigma(0); got != -1 {
		t.Fatalf("WeightToSigma(0) = %v", got)
	}
	if got := SigmaToWeight(0.5); math.Abs(got-4) > 1e-12 {
		t.Fatalf("SigmaToWeight(0.5) = %v", got)
	}
	if got := SigmaToWeight(-1); got != 0 {
		t.Fatalf("SigmaToWeight(-1) = %v", got)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float32
		want float32
	}{
		{in: nil, want: 0},
		{in: []float32{3}, want: 3},
		{in: []float32{5, 1, 3}, want: 3},
		{in: []float32{4, 1, 3, 2}, want: 2.5},
	}

	for _, tt := range tests {
		in := append([]float32(nil), tt.in...)
		if got := Median(in); got != tt.want {
			t.Fatalf("Median(%v) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range in {
			if in[i] != tt.in[i] {
				t.Fatal("Median modified its input")
			}
		}
	}
}
