package interp

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
)

// Shift delays y by shift samples (fractional allowed) with a Fourier phase
// ramp and writes the result to out. The signal is zero-padded to a power of
// two so the shift does not wrap around.
func Shift(y []complex64, shift float64, out []complex64) error {
	n := len(y)
	if len(out) != n {
		return ErrShape
	}
	if n == 0 {
		return nil
	}

	size := nextPowerOf2(2 * n)

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return fmt.Errorf("interp: failed to create FFT plan: %w", err)
	}

	padded := make([]complex128, size)
	for i, v := range y {
		padded[i] = complex128(v)
	}

	spec := make([]complex128, size)
	if err := plan.Forward(spec, padded); err != nil {
		return fmt.Errorf("interp: forward FFT failed: %w", err)
	}

	for k := range spec {
		// signed frequency index so the ramp is real-symmetric
		f := float64(k)
		if k > size/2 {
			f -= float64(size)
		}
		phase := -2 * math.Pi * f * shift / float64(size)
		spec[k] *= complex(math.Cos(phase), math.Sin(phase))
	}

	if err := plan.Inverse(padded, spec); err != nil {
		return fmt.Errorf("interp: inverse FFT failed: %w", err)
	}

	for i := range out {
		out[i] = complex64(padded[i])
	}

	return nil
}

// shiftResample maps a uniform input grid onto a uniform output grid of the
// same spacing and length by a sub-channel shift.
func shiftResample(x []float64, y []complex64, xs []float64, out []complex64, valid []bool, nb [][2]int) error {
	n := len(x)
	if n < 2 || len(xs) != n {
		return ErrNotUniform
	}

	dx := x[1] - x[0]
	if !uniform(x, dx) || !uniform(xs, dx) {
		return ErrNotUniform
	}

	// output sample i sits at input position i + offset
	offset := (xs[0] - x[0]) / dx
	if err := Shift(y, -offset, out); err != nil {
		return err
	}

	for i := range xs {
		pos := float64(i) + offset
		valid[i] = pos >= -1e-9 && pos <= float64(n-1)+1e-9
		if !valid[i] {
			out[i] = 0
			setRange(nb, i, 0, 0)
			continue
		}
		lo := int(math.Floor(pos))
		if lo < 0 {
			lo = 0
		}
		hi := lo + 2
		if hi > n {
			hi = n
		}
		setRange(nb, i, lo, hi)
	}

	return nil
}

func uniform(x []float64, dx float64) bool {
	tol := 1e-6 * math.Abs(dx)
	for i := 1; i < len(x); i++ {
		if math.Abs(x[i]-x[i-1]-dx) > tol {
			return false
		}
	}
	return true
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
