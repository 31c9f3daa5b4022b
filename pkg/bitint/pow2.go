// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used for buffer sizing and
transform padding.

	bufferSize := bitint.NextPowerOfTwo(1000) // 1024
	isValid := bitint.IsPowerOfTwo(framesPerBuffer)

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves: Len(8-1) = 3 and 1<<3 = 8, whereas Len(8)
would give 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, or 1 for
// non-positive sizes.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
//
//	8  true   1000 & 0111 = 0000
//	7  false  0111 & 0110 = 0110
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
