// Package tracestore holds the deduplicated, per-module set of trace
// records produced by the callback dispatcher. A Store owns the ModuleMap
// it resolves PCs against, per spec.md §3 ("The store also owns the
// ModuleMap").
package tracestore

import "github.com/cmptrace/runtime/internal/modulemap"

// Store is a deduplicated set of encoded 64-bit words, partitioned by
// module. It is not itself safe for concurrent use — internal/runtime
// serializes all access under the global coverage lock, per spec.md §5.
type Store struct {
	modules *modulemap.Map
	sets    []perModuleSet
}

// New returns a Store that resolves PCs against modules.
func New(modules *modulemap.Map) *Store {
	return &Store{modules: modules}
}

// perModuleSet is a module's dedup set plus its insertion-order record of
// encoded words, so that, for a fixed insertion sequence, iteration order
// is deterministic (spec.md §3: "iteration order ... must be stable enough
// for testability").
type perModuleSet struct {
	seen  map[uint64]struct{}
	order []uint64
}

func (p *perModuleSet) insert(w uint64) (inserted bool) {
	if _, ok := p.seen[w]; ok {
		return false
	}
	if p.seen == nil {
		p.seen = make(map[uint64]struct{})
	}
	p.seen[w] = struct{}{}
	p.order = append(p.order, w)
	return true
}

// TrySave resolves pc (an absolute instruction address) via the owned
// ModuleMap; if pc is not found in any known module, the record is
// silently dropped (spec.md §3 invariant: "no record whose module is
// unknown is ever stored") and resolved is false. Otherwise it encodes
// (pcOffset, tag1, tag2) and inserts it into that module's set; inserted
// reports whether this was a new record, as opposed to one already present
// (a dedup hit). internal/runtime folds (resolved, inserted) into the
// Metrics counters RecordsDropped and RecordsDeduped.
func (s *Store) TrySave(pc uint64, tag1, tag2 uint8) (resolved, inserted bool) {
	return s.TrySaveFiltered(pc, tag1, tag2, nil)
}

// TrySaveFiltered behaves like TrySave, but additionally drops a resolved
// record if allow is non-nil and returns false for the resolved module's
// short name — the SPEC_FULL.md module_filter configuration option.
func (s *Store) TrySaveFiltered(pc uint64, tag1, tag2 uint8, allow func(moduleName string) bool) (resolved, inserted bool) {
	idx, offset, found := s.modules.Locate(pc)
	if !found {
		return false, false
	}
	if allow != nil && !allow(s.modules.ModuleName(idx)) {
		return false, false
	}
	s.growTo(idx)
	return true, s.sets[idx].insert(Encode(offset, tag1, tag2))
}

// growTo ensures s.sets has room for module index idx.
func (s *Store) growTo(idx int) {
	if idx < len(s.sets) {
		return
	}
	grown := make([]perModuleSet, idx+1)
	copy(grown, s.sets)
	s.sets = grown
}

// ModulesCount returns the number of modules the owned ModuleMap knows
// about (triggers enumeration on first call, same as ModuleMap.ModulesCount).
func (s *Store) ModulesCount() int {
	return s.modules.ModulesCount()
}

// ModuleName returns the short name of module i.
func (s *Store) ModuleName(i int) string {
	return s.modules.ModuleName(i)
}

// Entry is one (module, encoded-word) pair returned by ListAll.
type Entry struct {
	ModuleIndex int
	Encoded     uint64
}

// ListModule returns, in deterministic insertion order, every encoded word
// recorded for module i. The returned slice must not be mutated by the
// caller.
func (s *Store) ListModule(i int) []uint64 {
	if i < 0 || i >= len(s.sets) {
		return nil
	}
	return s.sets[i].order
}

// ListAll returns every recorded (module_index, encoded_word) pair.
// Cross-module ordering is arbitrary (spec.md §3); within a module it
// follows insertion order.
func (s *Store) ListAll() []Entry {
	var out []Entry
	for i := range s.sets {
		for _, w := range s.sets[i].order {
			out = append(out, Entry{ModuleIndex: i, Encoded: w})
		}
	}
	return out
}
