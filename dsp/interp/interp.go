package interp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownMethod indicates an unparsable interpolation method name.
	ErrUnknownMethod = errors.New("interp: unknown interpolation method")
	// ErrShape indicates mismatched abscissa and sample lengths.
	ErrShape = errors.New("interp: abscissae and samples differ in length")
	// ErrNotUniform indicates a grid that FFT shifting cannot handle.
	ErrNotUniform = errors.New("interp: fftshift needs uniform grids of equal spacing and length")
)

// Method selects an interpolation algorithm.
type Method int

const (
	Nearest Method = iota
	Linear
	Cubic
	Spline
	FFTShift
)

func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	case Spline:
		return "spline"
	case FFTShift:
		return "fftshift"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses a method name. The empty string selects Linear.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return Linear, nil
	case "nearest":
		return Nearest, nil
	case "cubic":
		return Cubic, nil
	case "spline":
		return Spline, nil
	case "fftshift":
		return FFTShift, nil
	default:
		return Linear, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}

// Resample interpolates y, sampled at ascending x, onto the points xs.
// out and valid must have len(xs) elements; valid[i] is false for points
// outside [x[0], x[len(x)-1]], whose output is zero. nb returns, for each
// output point, the half-open range of input indices the value depends on.
func Resample(m Method, x []float64, y []complex64, xs []float64, out []complex64, valid []bool, nb [][2]int) error {
	if len(x) != len(y) {
		return ErrShape
	}
	if len(out) != len(xs) || len(valid) != len(xs) {
		return ErrShape
	}

	if m == FFTShift {
		return shiftResample(x, y, xs, out, valid, nb)
	}

	var spline *splineCoeffs
	if m == Spline && len(x) >= 3 {
		spline = newSpline(x, y)
	}

	for i, p := range xs {
		j, ok := locate(x, p)
		valid[i] = ok
		if !ok {
			out[i] = 0
			setRange(nb, i, 0, 0)
			continue
		}

		if len(x) == 1 {
			out[i] = y[0]
			setRange(nb, i, 0, 1)
			continue
		}

		if m != Nearest && (p == x[j] || p == x[j+1]) {
			k := j
			if p == x[j+1] {
				k = j + 1
			}
			out[i] = y[k]
			setRange(nb, i, k, k+1)
			continue
		}

		switch m {
		case Nearest:
			k := j
			if p-x[j] > x[j+1]-p {
				k = j + 1
			}
			out[i] = y[k]
			setRange(nb, i, k, k+1)
		case Cubic:
			lo := j - 1
			if lo < 0 {
				lo = 0
			}
			if lo+4 > len(x) {
				lo = len(x) - 4
			}
			if lo < 0 {
				out[i] = linear(x[j], x[j+1], y[j], y[j+1], p)
				setRange(nb, i, j, j+2)
				continue
			}
			out[i] = lagrange4(x[lo:lo+4], y[lo:lo+4], p)
			setRange(nb, i, lo, lo+4)
		case Spline:
			if spline == nil {
				out[i] = linear(x[j], x[j+1], y[j], y[j+1], p)
			} else {
				out[i] = spline.eval(j, p)
			}
			setRange(nb, i, j, j+2)
		default:
			out[i] = linear(x[j], x[j+1], y[j], y[j+1], p)
			setRange(nb, i, j, j+2)
		}
	}

	return nil
}

func setRange(nb [][2]int, i, lo, hi int) {
	if nb != nil {
		nb[i] = [2]int{lo, hi}
	}
}

// locate returns j with x[j] <= p <= x[j+1], clamped so j+1 is a valid index.
func locate(x []float64, p float64) (int, bool) {
	n := len(x)
	if n == 0 || p < x[0] || p > x[n-1] {
		return 0, false
	}
	if n == 1 {
		return 0, true
	}

	j := sort.SearchFloat64s(x, p)
	if j > 0 && (j == n || x[j] > p) {
		j--
	}
	if j >= n-1 {
		j = n - 2
	}

	return j, true
}

func linear(x0, x1 float64, y0, y1 complex64, p float64) complex64 {
	if x1 == x0 {
		return y0
	}

	t := float32((p - x0) / (x1 - x0))
	return y0 + complex(t, 0)*(y1-y0)
}

func lagrange4(x []float64, y []complex64, p float64) complex64 {
	var re, im float64
	for i := 0; i < 4; i++ {
		l := 1.0
		for j := 0; j < 4; j++ {
			if j != i {
				l *= (p - x[j]) / (x[i] - x[j])
			}
		}
		re += l * float64(real(y[i]))
		im += l * float64(imag(y[i]))
	}

	return complex(float32(re), float32(im))
}

// Hermite4 computes cubic 4-point interpolation on a uniform grid.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}
