package kernel

import "errors"

var (
	// ErrShape indicates a cube whose buffers disagree with its dimensions.
	ErrShape = errors.New("kernel: cube shape mismatch")
	// ErrMissingFrequencies indicates a regrid without input frequencies.
	ErrMissingFrequencies = errors.New("kernel: regrid needs input frequencies")
	// ErrIllegalConfig indicates a flag combination without a transform.
	ErrIllegalConfig = errors.New("kernel: illegal transform configuration")
)
