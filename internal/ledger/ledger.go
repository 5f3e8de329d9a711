// Package ledger provides a tamper-evident, append-only audit trail of
// Dumper flush operations. Each entry records a monotonically increasing
// sequence number, a timestamp, the module and output path that were
// flushed, the record count and SHA-256 of the file's bytes, the previous
// entry's hash (prev_hash), and the SHA-256 hash of the entry's own content
// (event_hash), narrowed to one fixed payload shape instead of an
// arbitrary JSON payload.
//
// # Hash chain
//
// The event_hash for entry N is computed as:
//
//	SHA-256( JSON({seq, ts, module, path, record_count, file_sha256, prev_hash}) )
//
// The genesis entry (seq=1) uses a prev_hash of 64 ASCII zero characters.
//
// # Append semantics
//
// Each entry is encoded as a single JSON line terminated by '\n', appended
// to a file opened with os.O_APPEND|os.O_CREATE|os.O_WRONLY.
//
// # Thread safety
//
// Ledger is only ever driven by the Dumper, which already holds the global
// coverage lock for its full duration (spec.md §4.5), so Ledger itself does
// not need its own mutex.
package ledger

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// GenesisHash is the all-zero SHA-256 hex digest used as the prev_hash of
// the very first entry in the chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one hash-chained record of a single Dumper flush.
type Entry struct {
	Seq         int64     `json:"seq"`
	Timestamp   time.Time `json:"ts"`
	Module      string    `json:"module"`
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	FileSHA256  string    `json:"file_sha256"`
	PrevHash    string    `json:"prev_hash"`
	EventHash   string    `json:"event_hash"`
}

// entryContent is the subset of Entry fields hashed to produce EventHash.
// It deliberately excludes EventHash itself.
type entryContent struct {
	Seq         int64     `json:"seq"`
	Timestamp   time.Time `json:"ts"`
	Module      string    `json:"module"`
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	FileSHA256  string    `json:"file_sha256"`
	PrevHash    string    `json:"prev_hash"`
}

// Ledger is a tamper-evident, append-only log of Dumper flush events.
// Create one with Open; do not copy after first use.
type Ledger struct {
	file     *os.File
	prevHash string
	seq      int64
}

// Open opens (or creates) the ledger file at path. If the file already
// contains entries, Open replays them to restore the current sequence
// number and prev_hash, and verifies the chain as it goes — a ledger that
// has been tampered with is rejected at Open time rather than silently
// extended.
func Open(path string) (*Ledger, error) {
	prevHash := GenesisHash
	seq := int64(0)

	if _, err := os.Stat(path); err == nil {
		_, lastSeq, lastHash, err := replay(path)
		if err != nil {
			return nil, err
		}
		seq, prevHash = lastSeq, lastHash
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open for appending %q: %w", path, err)
	}
	return &Ledger{file: f, prevHash: prevHash, seq: seq}, nil
}

func replay(path string) (entries []Entry, seq int64, prevHash string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, "", fmt.Errorf("ledger: open for reading %q: %w", path, err)
	}
	defer f.Close()

	prevHash = GenesisHash
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, 0, "", fmt.Errorf("ledger: malformed entry at seq %d: %w", seq+1, err)
		}
		if e.PrevHash != prevHash {
			return nil, 0, "", fmt.Errorf("ledger: chain break at seq %d: expected prev_hash %q, got %q", e.Seq, prevHash, e.PrevHash)
		}
		if computed := hashContent(contentOf(e)); computed != e.EventHash {
			return nil, 0, "", fmt.Errorf("ledger: hash mismatch at seq %d: stored %q, computed %q", e.Seq, e.EventHash, computed)
		}
		entries = append(entries, e)
		seq = e.Seq
		prevHash = e.EventHash
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, "", fmt.Errorf("ledger: scanning existing log %q: %w", path, err)
	}
	return entries, seq, prevHash, nil
}

// Append records one flushed module's file into the ledger and returns the
// full entry, including its assigned sequence number and hashes.
func (l *Ledger) Append(module, path string, recordCount int, fileSHA256 string) (Entry, error) {
	seq := l.seq + 1
	ts := time.Now().UTC()
	prevHash := l.prevHash

	content := entryContent{
		Seq:         seq,
		Timestamp:   ts,
		Module:      module,
		Path:        path,
		RecordCount: recordCount,
		FileSHA256:  fileSHA256,
		PrevHash:    prevHash,
	}
	eventHash := hashContent(content)

	e := Entry{
		Seq:         seq,
		Timestamp:   ts,
		Module:      module,
		Path:        path,
		RecordCount: recordCount,
		FileSHA256:  fileSHA256,
		PrevHash:    prevHash,
		EventHash:   eventHash,
	}

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: marshal entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return Entry{}, fmt.Errorf("ledger: write entry: %w", err)
	}

	l.seq = seq
	l.prevHash = eventHash
	return e, nil
}

// Close flushes any OS-level buffers and closes the underlying file.
func (l *Ledger) Close() error {
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("ledger: sync: %w", err)
	}
	return l.file.Close()
}

// Verify reads the ledger file at path and checks the full hash chain. It
// returns the ordered slice of entries on success, or the first chain error
// encountered. A missing or empty file is valid and returns an empty slice.
func Verify(path string) ([]Entry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	entries, _, _, err := replay(path)
	return entries, err
}

func contentOf(e Entry) entryContent {
	return entryContent{
		Seq:         e.Seq,
		Timestamp:   e.Timestamp,
		Module:      e.Module,
		Path:        e.Path,
		RecordCount: e.RecordCount,
		FileSHA256:  e.FileSHA256,
		PrevHash:    e.PrevHash,
	}
}

// HashFile computes the SHA-256 hex digest of data, the form internal/runtime
// feeds into Append's fileSHA256 argument for each file the Dumper wrote.
func HashFile(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashContent(c entryContent) string {
	raw, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("ledger: marshal entryContent: %v", err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
