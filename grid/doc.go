// Package grid plans the spectral axis of a transformation.
//
// For every selected spectral window the [Planner] derives an input grid
// (after channel averaging, before regridding) and an output grid, the
// per-channel [Contribution] lists of a window combination, the width-ratio
// fine grid used when output channels are much wider than input channels,
// and the weight and sigma scale factors of each output window.
//
// Frequencies are in Hz, velocities in m/s.
package grid
