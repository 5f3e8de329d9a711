// Package modulemap enumerates the modules (executables and shared
// libraries) loaded into the current process and answers a single query:
// given an absolute instruction address, which module contains it, and at
// what offset from that module's base.
//
// Enumeration happens exactly once, lazily, on the first call to Locate,
// ModulesCount or ModuleName.
// Modules loaded after that point are not discovered; see the package-level
// doc on Map for the rationale.
package modulemap

import (
	"path/filepath"
	"sort"
	"strings"
)

// Module describes one loaded executable image or shared library.
type Module struct {
	// Name is the module's canonical short name: its base filename with
	// its last extension dropped (e.g. "libc.so" for "/usr/lib/libc.so.6",
	// "myfuzzer" for "/opt/bin/myfuzzer").
	Name string
	// BaseAddress is the lowest address at which the module is mapped.
	BaseAddress uint64
	// Size is the span, in bytes, from BaseAddress to the highest mapped
	// address belonging to this module.
	Size uint64
}

// Enumerator discovers the modules currently loaded in the calling
// process. Each platform supplies its own; see enumerate_linux.go,
// enumerate_darwin.go, and enumerate_other.go.
type Enumerator func() ([]Module, error)

// Map is an ordered collection of Modules supporting address resolution.
//
// Map populates itself lazily from its Enumerator on the first call to
// Locate, and never refreshes afterward: a module loaded into the process
// after that first call will not be found by later Locate calls. This
// matches the static, single-binary nature of a fuzzing target and keeps
// Locate free of any synchronization beyond whatever the caller already
// holds — callers of this package (internal/runtime) already serialize
// access under the global coverage lock, so Map itself is not
// concurrency-safe on its own.
type Map struct {
	enumerate Enumerator
	populated bool

	modules []Module   // indexed by module_index, in discovery order
	byBase  []baseEntry // modules sorted by BaseAddress, for Locate
}

type baseEntry struct {
	base  uint64
	end   uint64 // base + size, exclusive
	index int    // index into modules
}

// New returns a Map that will use enum to discover modules on first use.
func New(enum Enumerator) *Map {
	return &Map{enumerate: enum}
}

// ensurePopulated runs the enumerator exactly once. If enumeration fails,
// the map is left empty: every subsequent Locate call returns NotFound,
// per spec ("if enumeration fails entirely ... every locate returns
// NotFound; the dispatcher silently drops such records").
func (m *Map) ensurePopulated() {
	if m.populated {
		return
	}
	m.populated = true

	mods, err := m.enumerate()
	if err != nil || len(mods) == 0 {
		return
	}

	m.modules = mods
	m.byBase = make([]baseEntry, len(mods))
	for i, mod := range mods {
		m.byBase[i] = baseEntry{base: mod.BaseAddress, end: mod.BaseAddress + mod.Size, index: i}
	}
	sort.Slice(m.byBase, func(i, j int) bool { return m.byBase[i].base < m.byBase[j].base })
}

// Locate resolves addr to the module that contains it. found is false if
// no known module's [BaseAddress, BaseAddress+Size) range contains addr,
// including the case where enumeration never found any modules.
func (m *Map) Locate(addr uint64) (index int, offset uint64, found bool) {
	m.ensurePopulated()
	if len(m.byBase) == 0 {
		return 0, 0, false
	}

	// Binary search for the last entry whose base is <= addr.
	i := sort.Search(len(m.byBase), func(i int) bool { return m.byBase[i].base > addr }) - 1
	if i < 0 {
		return 0, 0, false
	}
	e := m.byBase[i]
	if addr < e.base || addr >= e.end {
		return 0, 0, false
	}
	return e.index, addr - e.base, true
}

// ModulesCount returns the number of distinct modules discovered. It
// triggers enumeration if it has not already happened.
func (m *Map) ModulesCount() int {
	m.ensurePopulated()
	return len(m.modules)
}

// ModuleName returns the short name of the module at index i.
func (m *Map) ModuleName(i int) string {
	m.ensurePopulated()
	return m.modules[i].Name
}

// shortName derives a module's canonical short name from its full path: the
// base filename with its (single, trailing) extension dropped, e.g.
// "/usr/lib/libc.so.6" -> "libc.so", "/opt/bin/myfuzzer" -> "myfuzzer".
func shortName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}
