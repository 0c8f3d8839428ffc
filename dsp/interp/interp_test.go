package interp

import (
	"errors"
	"math"
	"testing"
)

func TestHermite4IdentityOnLinearRamp(t *testing.T) {
	xm1, x0, x1, x2 := -1.0, 0.0, 1.0, 2.0
	for _, tc := range []struct {
		t float64
		w float64
	}{
		{t: 0.0, w: 0.0},
		{t: 0.25, w: 0.25},
		{t: 0.5, w: 0.5},
		{t: 1.0, w: 1.0},
	} {
		got := Hermite4(tc.t, xm1, x0, x1, x2)
		if diff := got - tc.w; diff < -1e-12 || diff > 1e-12 {
			t.Fatalf("t=%v: got %v want %v", tc.t, got, tc.w)
		}
	}
}

func TestResampleReproducesLinearRamp(t *testing.T) {
	x := []float64{0, 1, 2.5, 3, 5}
	y := make([]complex64, len(x))
	for i, v := range x {
		y[i] = complex(float32(2*v+1), float32(-v))
	}
	xs := []float64{0, 0.5, 2.75, 4, 5}

	for _, m := range []Method{Linear, Cubic, Spline} {
		out := make([]complex64, len(xs))
		valid := make([]bool, len(xs))
		if err := Resample(m, x, y, xs, out, valid, nil); err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		for i, p := range xs {
			if !valid[i] {
				t.Fatalf("%v: point %v reported invalid", m, p)
			}
			want := complex(float32(2*p+1), float32(-p))
			if d := out[i] - want; math.Abs(float64(real(d))) > 1e-4 || math.Abs(float64(imag(d))) > 1e-4 {
				t.Fatalf("%v at %v: got %v want %v", m, p, out[i], want)
			}
		}
	}
}

func TestResampleNearestAndOutOfRange(t *testing.T) {
	x := []float64{10, 20, 30}
	y := []complex64{1, 2, 3}
	xs := []float64{5, 14, 16, 31}
	out := make([]complex64, len(xs))
	valid := make([]bool, len(xs))
	nb := make([][2]int, len(xs))

	if err := Resample(Nearest, x, y, xs, out, valid, nb); err != nil {
		t.Fatal(err)
	}

	if valid[0] || valid[3] {
		t.Fatalf("out-of-range points must be invalid: %v", valid)
	}
	if out[0] != 0 || out[3] != 0 {
		t.Fatalf("out-of-range output must be zero: %v", out)
	}
	if out[1] != 1 || out[2] != 2 {
		t.Fatalf("nearest = %v", out)
	}
	if nb[2] != [2]int{1, 2} {
		t.Fatalf("neighbourhood = %v", nb[2])
	}
}

func TestShiftByWholeSample(t *testing.T) {
	y := []complex64{0, 1, 2, 3, 4, 5, 6, 7}
	out := make([]complex64, len(y))

	if err := Shift(y, 1, out); err != nil {
		t.Fatal(err)
	}

	for i := 1; i < len(y); i++ {
		want := y[i-1]
		if d := out[i] - want; math.Abs(float64(real(d))) > 1e-4 || math.Abs(float64(imag(d))) > 1e-4 {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestFFTShiftNeedsUniformGrid(t *testing.T) {
	x := []float64{0, 1, 3}
	y := []complex64{1, 1, 1}
	out := make([]complex64, 3)
	valid := make([]bool, 3)

	err := Resample(FFTShift, x, y, []float64{0, 1, 2}, out, valid, nil)
	if !errors.Is(err, ErrNotUniform) {
		t.Fatalf("expected ErrNotUniform, got %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("CUBIC"); err != nil || m != Cubic {
		t.Fatalf("ParseMethod(CUBIC) = %v, %v", m, err)
	}
	if m, err := ParseMethod(""); err != nil || m != Linear {
		t.Fatalf("ParseMethod('') = %v, %v", m, err)
	}
	if _, err := ParseMethod("sinc"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}
