package tracestore

import "github.com/cespare/xxhash/v2"

// pcOffsetBits is the width of the PC-offset field within an encoded word.
const pcOffsetBits = 48

// pcOffsetMask isolates the low 48 bits of an encoded word.
const pcOffsetMask = (uint64(1) << pcOffsetBits) - 1

// Encode packs (pcOffset, tag1, tag2) into the 64-bit on-disk word defined
// by spec.md §3/§4.3:
//
//	encoded = (pc_offset & ((1<<48)-1)) | (tag1 << 48) | (tag2 << 56)
func Encode(pcOffset uint64, tag1, tag2 uint8) uint64 {
	return (pcOffset & pcOffsetMask) | uint64(tag1)<<48 | uint64(tag2)<<56
}

// Decode is the inverse of Encode: it recovers the PC offset, tag1, and
// tag2 fields from an encoded word. It is used only by tests asserting the
// round-trip law in spec.md §8.
func Decode(w uint64) (pcOffset uint64, tag1, tag2 uint8) {
	pcOffset = w & pcOffsetMask
	tag1 = uint8((w >> 48) & 0xff)
	tag2 = uint8((w >> 56) & 0xff)
	return
}

// Hash32 maps a 64-bit encoded word onto a 32-bit on-disk value for 32-bit
// targets (spec.md §3/§4.3: "hash(encoded_64) truncated to 32 bits").
// xxhash64 is a fixed, well-mixed, non-cryptographic digest — the same
// choice the wider pack makes (DataDog/datadog-agent, grafana/k6, and
// open-policy-agent/opa all vendor cespare/xxhash for this kind of role).
// Deduplication itself never uses this value; it is computed only at dump
// time, from the already-deduplicated 64-bit word, so hash collisions
// cannot merge two distinct events (spec.md §4.3).
func Hash32(encoded uint64) uint32 {
	var buf [8]byte
	putUint64LE(buf[:], encoded)
	return uint32(xxhash.Sum64(buf[:]))
}

func putUint64LE(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
