package runtime

import (
	"testing"

	"github.com/cmptrace/runtime/internal/modulemap"
)

func fixedEnumerator(mods ...modulemap.Module) modulemap.Enumerator {
	return func() ([]modulemap.Module, error) { return mods, nil }
}

func newTestRuntime(t *testing.T, env []string, mods ...modulemap.Module) *Runtime {
	t.Helper()
	r, err := newRuntime(env, fixedEnumerator(mods...), 4242)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	return r
}

func TestDisabledRuntimeRecordsNothing(t *testing.T) {
	r := newTestRuntime(t, nil, modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})
	r.NonConstCompare(0x1010, 4, 1, 2)
	r.ConstCompare(0x1010, 4, 300, 300)
	if got := r.store.ListAll(); len(got) != 0 {
		t.Fatalf("expected no records while disabled, got %v", got)
	}
}

func TestEnabledConstCompareRecords(t *testing.T) {
	r := newTestRuntime(t, []string{"ASAN_OPTIONS=coverage=1"},
		modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})

	r.ConstCompare(0x1010, 4, 0xDEADC0DE, 0xDEADC0DE)
	got := r.store.ListAll()
	if len(got) != 4 {
		t.Fatalf("expected 4 records for a full 4-byte const match, got %d", len(got))
	}
	if r.metrics.RecordsEmitted.Load() != 4 {
		t.Fatalf("RecordsEmitted = %d, want 4", r.metrics.RecordsEmitted.Load())
	}
}

func TestEnabledNonConstCompareGatedByFlag(t *testing.T) {
	r := newTestRuntime(t, []string{"ASAN_OPTIONS=coverage=1"},
		modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})

	r.NonConstCompare(0x1010, 4, 7, 7)
	if got := r.store.ListAll(); len(got) != 0 {
		t.Fatalf("expected non-const compares to stay off without TRACE_NONCONST_CMP, got %v", got)
	}
}

func TestModuleFilterDropsUnmatchedModule(t *testing.T) {
	r := newTestRuntime(t,
		[]string{"ASAN_OPTIONS=coverage=1"},
		modulemap.Module{Name: "other", BaseAddress: 0x1000, Size: 0x1000},
	)
	r.cfg.ModuleFilter = []string{"target*"}

	r.ConstCompare(0x1010, 4, 0xDEADC0DE, 0xDEADC0DE)
	if got := r.store.ListAll(); len(got) != 0 {
		t.Fatalf("expected records for a non-matching module to be dropped, got %v", got)
	}
	if r.metrics.RecordsDropped.Load() == 0 {
		t.Fatalf("expected RecordsDropped to count the filtered-out module")
	}
}

func TestSwitchZeroesHeaderUnderLockWhenNoCaseIsWide(t *testing.T) {
	r := newTestRuntime(t, []string{"ASAN_OPTIONS=coverage=1"},
		modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})

	var zeroed bool
	r.Switch(0x1010, 7, 8, []uint64{1, 2, 7}, func() {
		if r.mu.TryLock() {
			r.mu.Unlock()
			t.Fatalf("zeroHeader called without mu held")
		}
		zeroed = true
	})
	if !zeroed {
		t.Fatalf("expected zeroHeader to run when no case exceeds 255")
	}
}

func TestSwitchSkipsHeaderZeroWhenACaseIsWide(t *testing.T) {
	r := newTestRuntime(t, []string{"ASAN_OPTIONS=coverage=1"},
		modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})

	called := false
	r.Switch(0x1010, 300, 16, []uint64{1, 300}, func() { called = true })
	if called {
		t.Fatalf("expected zeroHeader not to run: a case value exceeds 255")
	}
}

func TestSwitchDisabledSkipsZeroHeader(t *testing.T) {
	r := newTestRuntime(t, nil, modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})

	called := false
	r.Switch(0x1010, 7, 8, []uint64{1, 2, 7}, func() { called = true })
	if called {
		t.Fatalf("expected zeroHeader not to run while disabled")
	}
}

func TestFlushIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := newTestRuntime(t, []string{"ASAN_OPTIONS=coverage=1,coverage_dir=" + dir},
		modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000})
	r.ConstCompare(0x1010, 4, 0xDEADC0DE, 0xDEADC0DE)

	r.Flush()
	first := r.metrics.DumpsWritten.Load()
	r.Flush()
	second := r.metrics.DumpsWritten.Load()
	if first != second {
		t.Fatalf("Flush is not idempotent: DumpsWritten went from %d to %d", first, second)
	}
	if first != 1 {
		t.Fatalf("DumpsWritten = %d, want 1", first)
	}
}
