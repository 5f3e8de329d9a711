// Package dispatch implements the per-entry-point policy of the
// instrumentation ABI: the matching-byte routine, const/non-const integer
// compares, switch, and the memory/string hook family. Every function here
// is a pure function over primitives — no cgo, no global state, no locking
// — so the policy is directly unit-testable. cmd/libcmptrace's cgo
// trampolines reach this package through internal/runtime, which supplies
// the lock, the lazily-initialized Config/ModuleMap/TraceStore, and PC
// resolution around it.
package dispatch

// Tags is one (tag1, tag2) pair to record against a resolved PC.
// internal/runtime turns each Tags value into a TraceStore.TrySave call.
type Tags struct {
	Tag1 uint8
	Tag2 uint8
}

// Compare1 implements trace_cmp1 and trace_const_cmp1: single-byte
// comparisons are assumed trivially brute-forceable, so they always
// produce zero records (spec.md §4.4).
func Compare1() []Tags { return nil }

// NonConstCompare implements trace_cmp{2,4,8}: an N-byte comparison where
// neither operand is known at compile time. It is active only when
// nonConstEnabled is set (the TRACE_NONCONST_CMP configuration flag).
func NonConstCompare(width int, x, y uint64, nonConstEnabled bool) []Tags {
	if !nonConstEnabled {
		return nil
	}
	matching := matchingBytes(width, x, y)
	return prefixRecords(matching, 0)
}

// ConstCompare implements trace_const_cmp{2,4,8}: an N-byte comparison
// where constant is the compile-time-known operand and value is the
// runtime operand. It is always active while the library is enabled
// (independent of TRACE_NONCONST_CMP). Per spec.md §4.4: constants below
// 256 carry no more discriminating power than a 1-byte compare and are
// skipped; for 4- and 8-byte compares the width actually inspected is
// narrowed to the constant's own byte span (see constcmp.go).
func ConstCompare(width int, constant, value uint64) []Tags {
	if constant < 256 {
		return nil
	}
	argLength := narrowedArgLength(width, constant)
	matching := matchingBytes(argLength, constant, value)
	return prefixRecords(matching, 0)
}

// SwitchResult is the outcome of a Switch call: the records to store, and
// whether the caller should memoize the case array as "never interesting"
// by zeroing its case-count slot (spec.md §4.4).
type SwitchResult struct {
	Records       []Tags
	ZeroCaseCount bool
}

// Switch implements trace_switch. cases holds the raw case constants only
// (cases_array[2:] in spec.md's indexing; the caller has already read out
// the count and bit-width fields). bitWidth is the operand width in bits
// (cases_array[1]).
func Switch(value uint64, bitWidth uint64, cases []uint64) SwitchResult {
	if len(cases) == 0 {
		return SwitchResult{}
	}

	width := int(bitWidth / 8)
	if width <= 0 {
		width = 8
	}

	var records []Tags
	anyWide := false
	for i, c := range cases {
		if c < 256 {
			continue
		}
		anyWide = true
		argLength := narrowedArgLength(width, c)
		matching := matchingBytes(argLength, c, value)
		records = append(records, prefixRecords(matching, uint8(i+1))...)
	}

	return SwitchResult{Records: records, ZeroCaseCount: !anyWide}
}

// matchingBytes implements spec.md §4.4's matching-byte routine: count how
// many of the low `length` bytes of x and y agree, starting from byte 0
// (the least-significant byte) and stopping at the first mismatch. length
// is clamped to 8 (the width of the uint64 operands).
func matchingBytes(length int, x, y uint64) int {
	if length > 8 {
		length = 8
	}
	i := 0
	for i < length {
		if byte(x>>(8*i)) != byte(y>>(8*i)) {
			break
		}
		i++
	}
	return i
}

// prefixRecords emits one Tags value per prefix length 1..matching, each
// carrying the given switchCase in tag2. Emitting one record per prefix
// length — rather than one per comparison — lets downstream fuzzers
// observe monotonic progress one byte at a time (spec.md §9); this must
// not be collapsed into a single record per call.
func prefixRecords(matching int, switchCase uint8) []Tags {
	if matching <= 0 {
		return nil
	}
	out := make([]Tags, matching)
	for k := 1; k <= matching; k++ {
		out[k-1] = Tags{Tag1: uint8(k), Tag2: switchCase}
	}
	return out
}
