package modulemap

import (
	"errors"
	"testing"
)

var errEnumeration = errors.New("enumeration failed")

func fixedEnumerator(mods []Module, err error) Enumerator {
	return func() ([]Module, error) { return mods, err }
}

func TestLocateFindsOwningModule(t *testing.T) {
	m := New(fixedEnumerator([]Module{
		{Name: "libfoo", BaseAddress: 0x1000, Size: 0x1000},
		{Name: "target", BaseAddress: 0x5000, Size: 0x2000},
	}, nil))

	idx, off, found := m.Locate(0x5010)
	if !found {
		t.Fatalf("expected to find address in module")
	}
	if idx != 1 {
		t.Fatalf("expected module index 1, got %d", idx)
	}
	if off != 0x10 {
		t.Fatalf("expected offset 0x10, got %#x", off)
	}
}

func TestLocateOutsideAnyModule(t *testing.T) {
	m := New(fixedEnumerator([]Module{
		{Name: "libfoo", BaseAddress: 0x1000, Size: 0x1000},
	}, nil))

	if _, _, found := m.Locate(0x9000); found {
		t.Fatalf("expected address outside any module to be NotFound")
	}
	if _, _, found := m.Locate(0x500); found {
		t.Fatalf("expected address below every module's base to be NotFound")
	}
}

func TestLocateBoundary(t *testing.T) {
	m := New(fixedEnumerator([]Module{
		{Name: "mod", BaseAddress: 0x1000, Size: 0x100},
	}, nil))

	if idx, off, found := m.Locate(0x1000); !found || idx != 0 || off != 0 {
		t.Fatalf("expected base address itself to resolve to offset 0, got idx=%d off=%#x found=%v", idx, off, found)
	}
	// 0x1000 + 0x100 is one past the end: exclusive, must not resolve.
	if _, _, found := m.Locate(0x1100); found {
		t.Fatalf("expected address at base+size (exclusive end) to be NotFound")
	}
}

func TestEnumerationFailureYieldsEmptyMap(t *testing.T) {
	m := New(fixedEnumerator(nil, errEnumeration))

	if n := m.ModulesCount(); n != 0 {
		t.Fatalf("expected 0 modules after failed enumeration, got %d", n)
	}
	if _, _, found := m.Locate(0x1000); found {
		t.Fatalf("expected every Locate to report NotFound after failed enumeration")
	}
}

func TestEnumerationRunsOnlyOnce(t *testing.T) {
	calls := 0
	m := New(func() ([]Module, error) {
		calls++
		return []Module{{Name: "mod", BaseAddress: 0x1000, Size: 0x10}}, nil
	})

	m.Locate(0x1000)
	m.Locate(0x1005)
	m.ModulesCount()

	if calls != 1 {
		t.Fatalf("expected enumerator to run exactly once, ran %d times", calls)
	}
}

func TestModuleNameAndCount(t *testing.T) {
	m := New(fixedEnumerator([]Module{
		{Name: "a", BaseAddress: 0x1000, Size: 0x10},
		{Name: "b", BaseAddress: 0x2000, Size: 0x10},
	}, nil))

	if n := m.ModulesCount(); n != 2 {
		t.Fatalf("expected 2 modules, got %d", n)
	}
	if name := m.ModuleName(1); name != "b" {
		t.Fatalf("expected module 1 name %q, got %q", "b", name)
	}
}
