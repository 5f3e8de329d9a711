package dispatch

// MaxDataCmpLength bounds how many bytes of a memcmp/strcmp-family call are
// ever inspected. Calls whose effective length exceeds it are dropped
// outright rather than truncated, so a single huge buffer comparison can't
// dominate a trace file (spec.md §4.4).
const MaxDataCmpLength = 64

// memTag1 is MEMCMP_TAG1 (spec.md §3): the tag1 value reserved for the
// memory/string hook family, keeping its records distinguishable from the
// integer-compare family's 1-based prefix-length tags.
const memTag1 = 0xF0

// MemCmp implements weak_hook_memcmp: a fixed-length byte comparison. n is
// the length argument as passed by the instrumented call; a and b are the
// two buffers (already bounded to at least n bytes by the caller — the
// cgo trampoline owns the unsafe pointer-to-slice conversion).
func MemCmp(n int, a, b []byte) []Tags {
	if n <= 0 || n > MaxDataCmpLength {
		return nil
	}
	matching := byteMatchingBytes(a, b, n)
	return memPrefixRecords(matching)
}

// StrnCmp implements weak_hook_strncmp (and strncasecmp):
// a length-bounded comparison of two NUL-terminated strings. The effective
// length actually compared is the smallest of: the caller-supplied bound
// n, and each string's own NUL position within that bound.
func StrnCmp(a, b []byte, n int) []Tags {
	n1, _ := nulScanBounded(a, n)
	n2, _ := nulScanBounded(b, n)
	eff := n
	if n1 < eff {
		eff = n1
	}
	if n2 < eff {
		eff = n2
	}
	return MemCmp(eff, a, b)
}

// StrCmp implements weak_hook_strcmp (and strcasecmp): an unbounded
// comparison of two NUL-terminated strings. Both strings are scanned in
// parallel for at most MaxDataCmpLength+1 bytes looking for a terminating
// NUL; if neither terminates within that range the call is dropped (it
// would exceed MaxDataCmpLength regardless of where the true end lies).
// Otherwise the effective length is the shorter of the two discovered
// string lengths.
func StrCmp(a, b []byte) []Tags {
	limit := MaxDataCmpLength + 1
	n1, found1 := nulScanBounded(a, limit)
	n2, found2 := nulScanBounded(b, limit)
	if !found1 && !found2 {
		return nil
	}
	eff := n1
	if n2 < eff {
		eff = n2
	}
	return MemCmp(eff, a, b)
}

func byteMatchingBytes(a, b []byte, n int) int {
	i := 0
	for i < n && i < len(a) && i < len(b) {
		if a[i] != b[i] {
			break
		}
		i++
	}
	return i
}

// nulScanBounded returns the index of the first NUL byte in s within the
// first limit bytes, or limit itself (with found=false) if none is seen.
func nulScanBounded(s []byte, limit int) (pos int, found bool) {
	n := limit
	if len(s) < n {
		n = len(s)
	}
	for i := 0; i < n; i++ {
		if s[i] == 0 {
			return i, true
		}
	}
	return limit, false
}

func memPrefixRecords(matching int) []Tags {
	if matching <= 0 {
		return nil
	}
	out := make([]Tags, matching)
	for k := 1; k <= matching; k++ {
		out[k-1] = Tags{Tag1: memTag1, Tag2: uint8(k)}
	}
	return out
}
