package dispatch

import "testing"

func TestNarrowedArgLengthWidth2Fixed(t *testing.T) {
	if got := narrowedArgLength(2, 0xFFFF); got != 2 {
		t.Fatalf("narrowedArgLength(2, ...) = %d, want 2", got)
	}
}

func TestNarrowedArgLengthFullWidthConstant(t *testing.T) {
	if got := narrowedArgLength(4, 0xDEADC0DE); got != 4 {
		t.Fatalf("narrowedArgLength(4, 0xDEADC0DE) = %d, want 4", got)
	}
	if got := narrowedArgLength(8, 0xFFFFFFFFFFFFFFFF); got != 8 {
		t.Fatalf("narrowedArgLength(8, all-ones) = %d, want 8", got)
	}
}

func TestNarrowedArgLengthSingleSignificantByte(t *testing.T) {
	// 0x100 has a single non-zero byte, the second one; the two bytes above
	// it are zero. bits.Len64 counts from the highest set bit, so
	// 0x100 = 0b1_0000_0000 needs 9 bits, leaving 32-9=23 leading zero
	// bits, rounded down to 16, for a remaining span of (32-16)/8 = 2 bytes.
	if got := narrowedArgLength(4, 0x100); got != 2 {
		t.Fatalf("narrowedArgLength(4, 0x100) = %d, want 2", got)
	}
}

func TestNarrowedArgLengthThreeByteSpan(t *testing.T) {
	// 0x10000 needs 17 bits; 32-17=15 leading zero bits, rounded down to
	// 8, remaining span (32-8)/8 = 3 bytes.
	if got := narrowedArgLength(4, 0x10000); got != 3 {
		t.Fatalf("narrowedArgLength(4, 0x10000) = %d, want 3", got)
	}
}

func TestNarrowedArgLengthZeroConstant(t *testing.T) {
	if got := narrowedArgLength(4, 0); got != 1 {
		t.Fatalf("narrowedArgLength(4, 0) = %d, want 1 (minimum one byte)", got)
	}
}
