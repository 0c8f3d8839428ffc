package grid

import "errors"

var (
	// ErrEmptyGrid indicates a grid without channels.
	ErrEmptyGrid = errors.New("grid: empty channel grid")
	// ErrBadWidth indicates a zero or non-finite channel width.
	ErrBadWidth = errors.New("grid: invalid channel width")
	// ErrUnknownMode indicates an unparsable regrid mode.
	ErrUnknownMode = errors.New("grid: unknown regrid mode")
	// ErrUnknownVelocity indicates an unparsable velocity definition.
	ErrUnknownVelocity = errors.New("grid: unknown velocity type")
	// ErrUnsupportedFrame indicates a frame the converter cannot reach.
	ErrUnsupportedFrame = errors.New("grid: unsupported frame conversion")
	// ErrNoRestFrequency indicates a velocity grid without rest frequency.
	ErrNoRestFrequency = errors.New("grid: velocity mode needs a rest frequency")
)
