package tracestore

import (
	"testing"

	"github.com/cmptrace/runtime/internal/modulemap"
)

func fixedMap(mods ...modulemap.Module) *modulemap.Map {
	return modulemap.New(func() ([]modulemap.Module, error) { return mods, nil })
}

func TestTrySaveDedup(t *testing.T) {
	s := New(fixedMap(modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000}))

	if resolved, inserted := s.TrySave(0x1010, 1, 0); !resolved || !inserted {
		t.Fatalf("first TrySave must resolve and insert")
	}
	for i := 0; i < 5; i++ {
		if resolved, inserted := s.TrySave(0x1010, 1, 0); !resolved || inserted {
			t.Fatalf("repeated TrySave with identical arguments must resolve but not insert again")
		}
	}

	entries := s.ListAll()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 stored record after repeated identical saves, got %d", len(entries))
	}
}

func TestTrySaveDropsUnresolvedPC(t *testing.T) {
	s := New(fixedMap(modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x10}))

	if resolved, inserted := s.TrySave(0xDEAD0000, 1, 0); resolved || inserted {
		t.Fatalf("TrySave for an address outside every module must not resolve or insert")
	}
	if len(s.ListAll()) != 0 {
		t.Fatalf("expected no stored records for an unresolved PC")
	}
}

func TestTrySavePartitionsByModule(t *testing.T) {
	s := New(fixedMap(
		modulemap.Module{Name: "a", BaseAddress: 0x1000, Size: 0x1000},
		modulemap.Module{Name: "b", BaseAddress: 0x5000, Size: 0x1000},
	))

	s.TrySave(0x1010, 1, 0)
	s.TrySave(0x5010, 1, 0)

	if got := s.ListModule(0); len(got) != 1 {
		t.Fatalf("expected 1 record in module 0, got %d", len(got))
	}
	if got := s.ListModule(1); len(got) != 1 {
		t.Fatalf("expected 1 record in module 1, got %d", len(got))
	}
}

func TestListModuleDeterministicOrder(t *testing.T) {
	s := New(fixedMap(modulemap.Module{Name: "target", BaseAddress: 0x1000, Size: 0x1000}))

	s.TrySave(0x1010, 1, 0)
	s.TrySave(0x1020, 2, 0)
	s.TrySave(0x1030, 3, 0)

	got := s.ListModule(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	wantOffsets := []uint64{0x10, 0x20, 0x30}
	for i, w := range got {
		off, _, _ := Decode(w)
		if off != wantOffsets[i] {
			t.Fatalf("record %d: expected offset %#x, got %#x (insertion order not preserved)", i, wantOffsets[i], off)
		}
	}
}
