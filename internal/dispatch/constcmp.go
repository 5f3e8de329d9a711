package dispatch

import "math/bits"

// narrowedArgLength computes the width, in bytes, actually inspected by a
// const-compare or switch-case comparison of nominal width `width` bytes
// against `constant` (spec.md §4.4).
//
// For a 2-byte comparison the width is never narrowed: 2 bytes is already
// the finest granularity above the no-op 1-byte case.
//
// For 4- and 8-byte comparisons, the width is narrowed to the constant's
// own byte span: count the constant's leading zero bits within its
// nominal bit width, round that count down to a whole multiple of 8 (a
// partially-zero leading byte still counts as a significant byte), and
// take the remaining bits as whole bytes, rounded up.
func narrowedArgLength(width int, constant uint64) int {
	if width <= 2 {
		return 2
	}

	bitWidth := width * 8
	leadingZeros := bitWidth - bits.Len64(constant)
	leadingZeros -= leadingZeros % 8
	if argLength := (bitWidth - leadingZeros + 7) / 8; argLength > 0 {
		return argLength
	}
	return 1
}
