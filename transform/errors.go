package transform

import "errors"

var (
	// ErrOptionType indicates an option value of the wrong type.
	ErrOptionType = errors.New("transform: bad option value")
	// ErrQuantity indicates an unparsable quantity such as "1.4GHz".
	ErrQuantity = errors.New("transform: bad quantity")
	// ErrDirection indicates an unparsable sky direction.
	ErrDirection = errors.New("transform: bad direction")
	// ErrNotSetUp is returned by Run before a successful Setup.
	ErrNotSetUp = errors.New("transform: manager not set up")
)
