package safe

import (
	"math"
)

// Uint64ToUint32 converts val to uint32, clamping to math.MaxUint32 if it does
// not fit. The boolean reports whether clamping occurred, which for a target
// address means it lies outside the 32-bit address space.
func Uint64ToUint32(val uint64) (uint32, bool) {
	if val > math.MaxUint32 {
		return math.MaxUint32, true
	}
	return uint32(val), false
}
