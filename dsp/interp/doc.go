// Package interp provides interpolation primitives for spectra sampled on
// irregular channel grids.
//
// Available methods, from cheapest to highest quality:
//
//   - [Nearest]:  nearest input channel
//   - [Linear]:   2-point linear interpolation
//   - [Cubic]:    4-point Lagrange interpolation on the true abscissae
//   - [Spline]:   natural cubic spline
//   - [FFTShift]: sub-channel shift by a Fourier phase ramp; input and output
//     grids must be uniform with equal spacing
//
// Abscissae must be strictly ascending. Output points outside the input span
// are reported invalid and set to zero.
package interp
