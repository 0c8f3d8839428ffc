package pipeline

import "github.com/cwbudde/algo-mstransform/archive"

// Iterator yields row buffers in sort-key order. Next returns io.EOF after
// the last buffer.
type Iterator interface {
	Next() (*Buffer, error)
	// Columns returns the cell columns the buffers carry.
	Columns() archive.ColumnSet
}

// Attempt holds the outcome of constructing an optional layer.
type Attempt[T any] struct {
	value T
	err   error
}

// Try records the outcome of a constructor.
func Try[T any](v T, err error) Attempt[T] {
	return Attempt[T]{value: v, err: err}
}

// OK reports whether construction succeeded.
func (a Attempt[T]) OK() bool {
	return a.err == nil
}

// Err returns the construction error.
func (a Attempt[T]) Err() error {
	return a.err
}

// Or returns the constructed value, or fallback when construction failed.
func (a Attempt[T]) Or(fallback T) T {
	if a.err != nil {
		return fallback
	}

	return a.value
}
