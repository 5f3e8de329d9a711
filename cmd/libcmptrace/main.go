// Command libcmptrace is the cgo boundary compiled with
// `-buildmode=c-archive` (or `-c-shared`) into the `.a`/`.h` pair a
// coverage-instrumented C/C++ binary links against. It is the only package
// in this repository that imports "C" — every other package is pure Go and
// independently unit-testable.
//
// The actual externally-visible ABI symbols (trace_cmp1, weak_hook_memcmp,
// ...) are small C trampolines defined in the cgo preamble below, not Go
// functions themselves: cgo's `//export` mechanism can produce a C symbol
// for a Go function, but it cannot make that Go function read
// `__builtin_return_address(0)`, which is how the integer/switch compare
// family discovers the instrumented call site's PC (spec.md §6 defines
// those entry points with no explicit pc argument). So each such C
// trampoline captures the return address itself and forwards it, along
// with the original arguments, to an internal Go function exported under a
// "go"-prefixed name. The memory/string hooks already carry an explicit pc
// argument in their C signature and need no such trampoline logic beyond
// pointer marshalling.
//
// A constructor-registered atexit hook drives Runtime.Flush when the host
// process exits, mirroring spec.md §4.5's "triggered once, from the
// process-exit hook" requirement for a library with no natural Go main of
// its own: the flush runs on process exit via libc, not on a signal.
package main

/*
#include <stdint.h>
#include <stddef.h>
#include <stdlib.h>

extern void goTraceCmp1(uint8_t a, uint8_t b);
extern void goTraceConstCmp1(uint8_t a, uint8_t b);
extern void goTraceCmp2(uint64_t pc, uint16_t a, uint16_t b);
extern void goTraceCmp4(uint64_t pc, uint32_t a, uint32_t b);
extern void goTraceCmp8(uint64_t pc, uint64_t a, uint64_t b);
extern void goTraceConstCmp2(uint64_t pc, uint16_t c, uint16_t v);
extern void goTraceConstCmp4(uint64_t pc, uint32_t c, uint32_t v);
extern void goTraceConstCmp8(uint64_t pc, uint64_t c, uint64_t v);
extern void goTraceSwitch(uint64_t pc, uint64_t value, uint64_t *cases);
extern void goWeakHookMemcmp(uint64_t pc, const void *s1, const void *s2, size_t n);
extern void goWeakHookStrncmp(uint64_t pc, const char *s1, const char *s2, size_t n);
extern void goWeakHookStrcmp(uint64_t pc, const char *s1, const char *s2);
extern void goFlushAtExit(void);

void trace_cmp1(uint8_t a, uint8_t b) { goTraceCmp1(a, b); }
void trace_const_cmp1(uint8_t a, uint8_t b) { goTraceConstCmp1(a, b); }

void trace_cmp2(uint16_t a, uint16_t b) {
	goTraceCmp2((uint64_t)(uintptr_t)__builtin_return_address(0), a, b);
}
void trace_cmp4(uint32_t a, uint32_t b) {
	goTraceCmp4((uint64_t)(uintptr_t)__builtin_return_address(0), a, b);
}
void trace_cmp8(uint64_t a, uint64_t b) {
	goTraceCmp8((uint64_t)(uintptr_t)__builtin_return_address(0), a, b);
}
void trace_const_cmp2(uint16_t c, uint16_t v) {
	goTraceConstCmp2((uint64_t)(uintptr_t)__builtin_return_address(0), c, v);
}
void trace_const_cmp4(uint32_t c, uint32_t v) {
	goTraceConstCmp4((uint64_t)(uintptr_t)__builtin_return_address(0), c, v);
}
void trace_const_cmp8(uint64_t c, uint64_t v) {
	goTraceConstCmp8((uint64_t)(uintptr_t)__builtin_return_address(0), c, v);
}
void trace_switch(uint64_t value, uint64_t *cases) {
	goTraceSwitch((uint64_t)(uintptr_t)__builtin_return_address(0), value, cases);
}

// trace_div4, trace_div8, and trace_gep are accepted and ignored, per
// spec.md §6 — this library derives no data-flow signal from a division or
// a GEP, so there is nothing for Go to do with them.
void trace_div4(uint32_t val) {}
void trace_div8(uint64_t val) {}
void trace_gep(uintptr_t idx) {}

void weak_hook_memcmp(uint64_t pc, const void *s1, const void *s2, size_t n, int result) {
	goWeakHookMemcmp(pc, s1, s2, n);
}
void weak_hook_strncmp(uint64_t pc, const char *s1, const char *s2, size_t n, int result) {
	goWeakHookStrncmp(pc, s1, s2, n);
}
void weak_hook_strcmp(uint64_t pc, const char *s1, const char *s2, int result) {
	goWeakHookStrcmp(pc, s1, s2);
}
void weak_hook_strncasecmp(uint64_t pc, const char *s1, const char *s2, size_t n, int result) {
	goWeakHookStrncmp(pc, s1, s2, n);
}
void weak_hook_strcasecmp(uint64_t pc, const char *s1, const char *s2, int result) {
	goWeakHookStrcmp(pc, s1, s2);
}

static void cmptrace_atexit_hook(void) { goFlushAtExit(); }

__attribute__((constructor))
static void cmptrace_register_atexit(void) {
	atexit(cmptrace_atexit_hook);
}
*/
import "C"

import (
	"unsafe"

	cmptrace "github.com/cmptrace/runtime/internal/runtime"
)

func main() {}

//export goTraceCmp1
func goTraceCmp1(_, _ C.uint8_t) {
	cmptrace.Global().Compare1()
}

//export goTraceConstCmp1
func goTraceConstCmp1(_, _ C.uint8_t) {
	cmptrace.Global().Compare1()
}

//export goTraceCmp2
func goTraceCmp2(pc C.uint64_t, a, b C.uint16_t) {
	cmptrace.Global().NonConstCompare(uint64(pc), 2, uint64(a), uint64(b))
}

//export goTraceCmp4
func goTraceCmp4(pc C.uint64_t, a, b C.uint32_t) {
	cmptrace.Global().NonConstCompare(uint64(pc), 4, uint64(a), uint64(b))
}

//export goTraceCmp8
func goTraceCmp8(pc C.uint64_t, a, b C.uint64_t) {
	cmptrace.Global().NonConstCompare(uint64(pc), 8, uint64(a), uint64(b))
}

//export goTraceConstCmp2
func goTraceConstCmp2(pc C.uint64_t, c, v C.uint16_t) {
	cmptrace.Global().ConstCompare(uint64(pc), 2, uint64(c), uint64(v))
}

//export goTraceConstCmp4
func goTraceConstCmp4(pc C.uint64_t, c, v C.uint32_t) {
	cmptrace.Global().ConstCompare(uint64(pc), 4, uint64(c), uint64(v))
}

//export goTraceConstCmp8
func goTraceConstCmp8(pc C.uint64_t, c, v C.uint64_t) {
	cmptrace.Global().ConstCompare(uint64(pc), 8, uint64(c), uint64(v))
}

// switchHeaderWords is the length, in uint64 words, of the cases_array
// header: cases[0] is the case count, cases[1] is the operand bit width.
const switchHeaderWords = 2

//export goTraceSwitch
func goTraceSwitch(pc, value C.uint64_t, cases *C.uint64_t) {
	if cases == nil {
		return
	}
	header := unsafe.Slice((*uint64)(unsafe.Pointer(cases)), switchHeaderWords)
	count := header[0]
	if count == 0 {
		return
	}
	bitWidth := header[1]

	base := unsafe.Pointer(cases)
	caseValuesPtr := unsafe.Pointer(uintptr(base) + switchHeaderWords*8)
	caseValues := unsafe.Slice((*uint64)(caseValuesPtr), int(count))

	// header[0] is only ever written from inside Switch, while it holds the
	// lock, so cases_array is never mutated outside the locked region.
	cmptrace.Global().Switch(uint64(pc), uint64(value), bitWidth, caseValues, func() {
		header[0] = 0
	})
}

//export goWeakHookMemcmp
func goWeakHookMemcmp(pc C.uint64_t, s1, s2 unsafe.Pointer, n C.size_t) {
	trueN := int(n)
	if trueN <= 0 {
		return
	}
	readLen := boundedLength(n)
	a := unsafe.Slice((*byte)(s1), readLen)
	b := unsafe.Slice((*byte)(s2), readLen)
	// dispatch.MemCmp must see the true n, not readLen, so a call whose
	// length exceeds maxDataCmpLength is dropped rather than silently
	// truncated into an in-range one.
	cmptrace.Global().MemCmp(uint64(pc), trueN, a, b)
}

//export goWeakHookStrncmp
func goWeakHookStrncmp(pc C.uint64_t, s1, s2 *C.char, n C.size_t) {
	trueN := int(n)
	if trueN <= 0 {
		return
	}
	readLen := boundedLength(n)
	a := unsafe.Slice((*byte)(unsafe.Pointer(s1)), readLen)
	b := unsafe.Slice((*byte)(unsafe.Pointer(s2)), readLen)
	cmptrace.Global().StrnCmp(uint64(pc), a, b, trueN)
}

//export goWeakHookStrcmp
func goWeakHookStrcmp(pc C.uint64_t, s1, s2 *C.char) {
	const scanWindow = maxDataCmpLength + 1
	a := unsafe.Slice((*byte)(unsafe.Pointer(s1)), scanWindow)
	b := unsafe.Slice((*byte)(unsafe.Pointer(s2)), scanWindow)
	cmptrace.Global().StrCmp(uint64(pc), a, b)
}

//export goFlushAtExit
func goFlushAtExit() {
	cmptrace.Global().Flush()
}

// maxDataCmpLength mirrors dispatch.MaxDataCmpLength: it bounds how many
// bytes this package will ever read across the cgo boundary for a single
// memory/string comparison, independent of the value n that the caller
// passed in (which this package does not trust beyond that bound).
const maxDataCmpLength = 64

// boundedLength clamps n to [0, maxDataCmpLength] for the unsafe.Slice read
// window only — callers must still pass the true, unclamped n through to
// internal/dispatch, which is what decides whether an oversize comparison
// gets dropped (spec.md §4.4). Clamping the value passed to dispatch itself
// would turn a drop into up to maxDataCmpLength spurious records.
func boundedLength(n C.size_t) int {
	length := int(n)
	if length > maxDataCmpLength {
		return maxDataCmpLength
	}
	return length
}
