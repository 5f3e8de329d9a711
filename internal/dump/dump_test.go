package dump

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmptrace/runtime/internal/tracestore"
)

type fakeStore struct {
	names   []string
	records [][]uint64
}

func (f *fakeStore) ModulesCount() int             { return len(f.names) }
func (f *fakeStore) ModuleName(i int) string       { return f.names[i] }
func (f *fakeStore) ListModule(i int) []uint64 { return f.records[i] }

func TestDumpAllWritesMagicHeaderAndRecords(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{
		names:   []string{"target"},
		records: [][]uint64{{tracestore.Encode(0x10, 1, 0), tracestore.Encode(0x20, 2, 0)}},
	}
	d := New(dir, 4242, true)

	results, err := d.DumpAll(store)
	if err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	wantPath := filepath.Join(dir, "cmp.target.4242.sancov")
	if results[0].Path != wantPath {
		t.Fatalf("path = %q, want %q", results[0].Path, wantPath)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 8+2*8 {
		t.Fatalf("file length = %d, want %d", len(data), 8+2*8)
	}
	if magic := binary.LittleEndian.Uint64(data[:8]); magic != Magic {
		t.Fatalf("magic = %#x, want %#x", magic, Magic)
	}
	if w := binary.LittleEndian.Uint64(data[8:16]); w != tracestore.Encode(0x10, 1, 0) {
		t.Fatalf("first record = %#x, want %#x", w, tracestore.Encode(0x10, 1, 0))
	}
}

func TestDumpAllSkipsEmptyModules(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{
		names:   []string{"empty", "target"},
		records: [][]uint64{nil, {tracestore.Encode(0x10, 1, 0)}},
	}
	d := New(dir, 1, true)

	results, err := d.DumpAll(store)
	if err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	if len(results) != 1 || results[0].ModuleName != "target" {
		t.Fatalf("expected exactly the non-empty module to be dumped, got %+v", results)
	}
	if _, err := os.Stat(filepath.Join(dir, "cmp.empty.1.sancov")); !os.IsNotExist(err) {
		t.Fatalf("expected no file written for the empty module")
	}
}

func TestDumpAllDisambiguatesSharedNames(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{
		names: []string{"lib", "lib"},
		records: [][]uint64{
			{tracestore.Encode(0x10, 1, 0)},
			{tracestore.Encode(0x20, 1, 0)},
		},
	}
	d := New(dir, 7, true)

	results, err := d.DumpAll(store)
	if err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Path == results[1].Path {
		t.Fatalf("expected distinct paths for two modules sharing a short name, got %q twice", results[0].Path)
	}
	if filepath.Base(results[1].Path) != "cmp.lib.7.1.sancov" {
		t.Fatalf("expected the second module to get an index-suffixed filename, got %q", results[1].Path)
	}
}

func TestDumpAllNarrowEncodingUsesFourByteRecords(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{
		names:   []string{"target"},
		records: [][]uint64{{tracestore.Encode(0x10, 1, 0)}},
	}
	d := New(dir, 9, false)

	if _, err := d.DumpAll(store); err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "cmp.target.9.sancov"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 8+4 {
		t.Fatalf("file length = %d, want %d (8-byte magic + one 4-byte record)", len(data), 12)
	}
}
