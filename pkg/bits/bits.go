// Package bits reads and sets bits of a byte using the 1-based numbering
// of ISO/IEC 7816 (bit 1 is the least significant, bit 8 the most).
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with bit n set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// GetRange extracts bits high..low as a right-aligned value.
// GetRange(0b00001100, 4, 3) returns 0b11.
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// High returns bits 8-5.
func High(b byte) byte { return GetRange(b, 8, 5) }

// Low returns bits 4-1.
func Low(b byte) byte { return GetRange(b, 4, 1) }
