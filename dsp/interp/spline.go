package interp

// splineCoeffs holds natural cubic spline second derivatives for the real and
// imaginary parts.
type splineCoeffs struct {
	x      []float64
	re, im []float64
	d2r    []float64
	d2i    []float64
}

func newSpline(x []float64, y []complex64) *splineCoeffs {
	n := len(x)
	s := &splineCoeffs{
		x:  x,
		re: make([]float64, n),
		im: make([]float64, n),
	}
	for i, v := range y {
		s.re[i] = float64(real(v))
		s.im[i] = float64(imag(v))
	}

	s.d2r = secondDerivatives(x, s.re)
	s.d2i = secondDerivatives(x, s.im)
	return s
}

// secondDerivatives solves the tridiagonal system of a natural spline.
func secondDerivatives(x, y []float64) []float64 {
	n := len(x)
	d2 := make([]float64, n)
	u := make([]float64, n)

	for i := 1; i < n-1; i++ {
		sig := (x[i] - x[i-1]) / (x[i+1] - x[i-1])
		p := sig*d2[i-1] + 2
		d2[i] = (sig - 1) / p
		u[i] = (y[i+1]-y[i])/(x[i+1]-x[i]) - (y[i]-y[i-1])/(x[i]-x[i-1])
		u[i] = (6*u[i]/(x[i+1]-x[i-1]) - sig*u[i-1]) / p
	}

	d2[n-1] = 0
	for k := n - 2; k >= 0; k-- {
		d2[k] = d2[k]*d2[k+1] + u[k]
	}

	return d2
}

func (s *splineCoeffs) eval(j int, p float64) complex64 {
	h := s.x[j+1] - s.x[j]
	if h == 0 {
		return complex(float32(s.re[j]), float32(s.im[j]))
	}

	a := (s.x[j+1] - p) / h
	b := (p - s.x[j]) / h
	c := (a*a*a - a) * h * h / 6
	d := (b*b*b - b) * h * h / 6

	re := a*s.re[j] + b*s.re[j+1] + c*s.d2r[j] + d*s.d2r[j+1]
	im := a*s.im[j] + b*s.im[j+1] + c*s.d2i[j] + d*s.d2i[j+1]
	return complex(float32(re), float32(im))
}
