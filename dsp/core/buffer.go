package core

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen[T any](buf []T, n int) []T {
	if n <= 0 {
		return buf[:0]
	}
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]T, n)
}

// Stride copies every stride-th element of src starting at offset into dst and
// returns dst. It extracts one correlation's spectrum from a chan*ncorr cell.
func Stride[T any](dst, src []T, offset, stride int) []T {
	n := 0
	if stride > 0 && offset < len(src) {
		n = (len(src) - offset + stride - 1) / stride
	}
	dst = EnsureLen(dst, n)
	for i := range dst {
		dst[i] = src[offset+i*stride]
	}
	return dst
}
