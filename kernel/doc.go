// Package kernel holds the per-sample aggregation kernels and the cube-level
// spectral transforms.
//
// [Resolve] maps the transformation flags onto a [Strategy]: one data
// [Weighting], one weight Weighting and the kind of cube transform. The
// strategy then builds one [Transform] per planned output window; the set of
// transform variants is closed.
//
// Cubes are flat, channel-major: sample (chan, corr) lives at chan*NCorr+corr.
package kernel
