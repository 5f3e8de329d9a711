// Package dump implements the Dumper: at process exit it serializes each
// module's TraceStore records into its own sub-instruction coverage-dump
// file, in the standard ".sancov" layout (spec.md §4.5/§6).
package dump

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cmptrace/runtime/internal/tracestore"
)

// Magic is the 8-byte file header identifying the 64-bit record width
// (spec.md §3: MAGIC = 0xC0BFFFFFFFFFFF64).
const Magic uint64 = 0xC0BFFFFFFFFFFF64

// Store is the subset of *tracestore.Store the Dumper needs. Declared as an
// interface so tests can dump a hand-built fixture without a real ModuleMap.
type Store interface {
	ModulesCount() int
	ModuleName(i int) string
	ListModule(i int) []uint64
}

// Result describes one module's flush, for Metrics and the optional Ledger.
type Result struct {
	ModuleName  string
	Path        string
	RecordCount int
	Bytes       []byte // the exact bytes written, for SHA-256 by the Ledger
}

// Dumper writes one .sancov file per module present in a Store.
type Dumper struct {
	// OutputDir is the directory .sancov files are written into.
	OutputDir string
	// PID is embedded in every output filename, matching spec.md §4.5/§6.
	PID int
	// Wide selects the on-disk record width: true for the 8-byte (64-bit
	// target) encoding, false for the 4-byte, hash-truncated 32-bit encoding.
	Wide bool
}

// New returns a Dumper writing into outputDir, tagging filenames with pid.
func New(outputDir string, pid int, wide bool) *Dumper {
	return &Dumper{OutputDir: outputDir, PID: pid, Wide: wide}
}

// DumpAll flushes every module in store to its own file, one at a time, in
// module-index order. On the first failure it stops and returns the Results
// of the modules already written, paired with that error — the caller
// (internal/runtime) treats any error here as fatal per spec.md §4.5/§7 and
// should abort after logging it, but the partial results are still useful
// for diagnostics.
func (d *Dumper) DumpAll(store Store) ([]Result, error) {
	n := store.ModulesCount()
	seen := make(map[string]int, n)
	results := make([]Result, 0, n)

	for i := 0; i < n; i++ {
		records := store.ListModule(i)
		if len(records) == 0 {
			continue
		}
		name := store.ModuleName(i)
		res, err := d.dumpModule(name, i, seen, records)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (d *Dumper) dumpModule(name string, index int, seen map[string]int, records []uint64) (Result, error) {
	path, f, err := d.openDumpFile(name, index, seen)
	if err != nil {
		return Result{}, fmt.Errorf("dump: opening %s: %w", name, err)
	}
	defer f.Close()

	buf := encodeFile(records, d.Wide)
	if _, err := f.Write(buf); err != nil {
		return Result{}, fmt.Errorf("dump: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("dump: closing %s: %w", path, err)
	}

	fmt.Fprintf(os.Stderr, "CmpSanitizerCoverage: %s: %d PCs written\n", path, len(records))
	return Result{ModuleName: name, Path: path, RecordCount: len(records), Bytes: buf}, nil
}

// openDumpFile implements spec.md §4.5/§6's filename-disambiguation rule:
// the first module with a given short name gets the plain name; any later
// module sharing that name gets the module index appended. The first
// attempt for a given (name, retried) pair uses O_EXCL so a genuine
// filename collision (rather than just a repeated short name within this
// run) falls back to the suffixed name instead of silently overwriting.
func (d *Dumper) openDumpFile(name string, index int, seen map[string]int) (string, *os.File, error) {
	base := fmt.Sprintf("cmp.%s.%d.sancov", name, d.PID)
	path := filepath.Join(d.OutputDir, base)

	if _, dup := seen[name]; dup {
		base = fmt.Sprintf("cmp.%s.%d.%d.sancov", name, d.PID, index)
		path = filepath.Join(d.OutputDir, base)
	}
	seen[name] = index

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		base = fmt.Sprintf("cmp.%s.%d.%d.sancov", name, d.PID, index)
		path = filepath.Join(d.OutputDir, base)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return path, nil, err
	}
	return path, f, nil
}

// encodeFile builds the full byte content of one .sancov file: the 8-byte
// magic header followed by one record per encoded word, each 8 bytes (wide)
// or 4 bytes (hash-truncated), little-endian, per spec.md §6.
func encodeFile(records []uint64, wide bool) []byte {
	recordSize := 4
	if wide {
		recordSize = 8
	}
	buf := make([]byte, 8+recordSize*len(records))
	binary.LittleEndian.PutUint64(buf[:8], Magic)

	off := 8
	for _, w := range records {
		if wide {
			binary.LittleEndian.PutUint64(buf[off:off+8], w)
			off += 8
		} else {
			binary.LittleEndian.PutUint32(buf[off:off+4], tracestore.Hash32(w))
			off += 4
		}
	}
	return buf
}
