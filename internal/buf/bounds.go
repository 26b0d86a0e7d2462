// Package buf holds overflow-safe arithmetic for offsets read out of untrusted images.
package buf

import (
	"fmt"
	"math"
)

// AddInt64 adds a and b, returning ok = false when the result would overflow int64.
func AddInt64(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulUint32 multiplies a and b in 64 bits. The product of two uint32 values always fits.
func MulUint32(a, b uint32) uint64 {
	return uint64(a) * uint64(b)
}

// CheckRange validates that the n bytes starting at off lie within a window of
// windowLen bytes. It returns the end offset of the range.
func CheckRange(windowLen, off, n int64) (int64, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length: %d", n)
	}
	end, ok := AddInt64(off, n)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", off, n)
	}
	if end > windowLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, windowLen)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n uint32) ([]byte, bool) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(b)) {
		return nil, false
	}
	return b[off:end], true
}
