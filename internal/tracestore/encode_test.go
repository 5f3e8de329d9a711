package tracestore

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		pcOffset uint64
		tag1     uint8
		tag2     uint8
	}{
		{0, 1, 0},
		{0xFFFFFFFFFFFF, 0xF0, 0xFF}, // max 48-bit offset, memcmp sentinel
		{0x123456789ABC, 4, 3},
	}

	for _, c := range cases {
		w := Encode(c.pcOffset, c.tag1, c.tag2)
		gotOffset, gotTag1, gotTag2 := Decode(w)
		if gotOffset != c.pcOffset || gotTag1 != c.tag1 || gotTag2 != c.tag2 {
			t.Fatalf("Encode/Decode round trip failed for %+v: got offset=%#x tag1=%d tag2=%d",
				c, gotOffset, gotTag1, gotTag2)
		}
	}
}

func TestEncodeMasksOverflowingOffset(t *testing.T) {
	// A pcOffset with bits set above bit 47 must not bleed into tag1.
	w := Encode(1<<48|0x10, 5, 0)
	offset, tag1, _ := Decode(w)
	if offset != 0x10 {
		t.Fatalf("expected offset to be masked to 0x10, got %#x", offset)
	}
	if tag1 != 5 {
		t.Fatalf("expected tag1 unaffected by offset overflow, got %d", tag1)
	}
}

func TestHash32Deterministic(t *testing.T) {
	w := Encode(0x1234, 2, 1)
	a := Hash32(w)
	b := Hash32(w)
	if a != b {
		t.Fatalf("Hash32 must be deterministic for the same input")
	}
}

func TestHash32DistinguishesDistinctWords(t *testing.T) {
	a := Hash32(Encode(0x1234, 2, 1))
	b := Hash32(Encode(0x1235, 2, 1))
	if a == b {
		t.Fatalf("expected distinct encoded words to (almost always) hash differently")
	}
}
