// Package runtime owns the cmptrace library's process-lifetime state: the
// lazily-initialized Configuration/ModuleMap/TraceStore/Metrics/Ledger
// quintet, and the single process-wide mutex guarding all of it. Every
// dispatcher entry point goes through a Runtime method; internal/dispatch
// itself never touches global state.
//
// The lazy-init shape is a constructor that wires optional components
// together behind a single sync.Once-guarded container, since this library
// has no background goroutines of its own — every call happens
// synchronously on the instrumented program's own thread.
package runtime

import (
	"fmt"
	"log/slog"
	"math/bits"
	"net/http"
	"os"
	"sync"

	"github.com/cmptrace/runtime/internal/config"
	"github.com/cmptrace/runtime/internal/dispatch"
	"github.com/cmptrace/runtime/internal/dump"
	"github.com/cmptrace/runtime/internal/ledger"
	"github.com/cmptrace/runtime/internal/metrics"
	"github.com/cmptrace/runtime/internal/modulemap"
	"github.com/cmptrace/runtime/internal/tracestore"
)

// Runtime is the single, process-wide container cmd/libcmptrace's cgo
// trampolines call into. Construct it with Global, or with New for an
// instance driven by an explicit Config and Enumerator.
type Runtime struct {
	mu sync.Mutex

	cfg     *config.Config
	modules *modulemap.Map
	store   *tracestore.Store
	metrics *metrics.Metrics
	ledger  *ledger.Ledger

	logger *slog.Logger
	pid    int
	wide   bool

	flushOnce sync.Once
}

var (
	initOnce sync.Once
	global   *Runtime
	initErr  error
)

// Global returns the process-wide Runtime, constructing it from the
// process environment on first call. A configuration error (malformed
// ASAN_OPTIONS, unreadable CMPTRACE_CONFIG file) is fatal, per spec.md §7:
// it is logged and the process aborts, since no further callback can be
// serviced sensibly.
func Global() *Runtime {
	initOnce.Do(func() {
		global, initErr = newRuntime(os.Environ(), modulemap.Default(), os.Getpid())
		if initErr != nil {
			slog.Error("cmptrace: configuration error", slog.Any("error", initErr))
			os.Exit(2)
		}
	})
	return global
}

// newRuntime builds a Runtime from an explicit environment and enumerator,
// so tests can exercise it without touching process-global state.
func newRuntime(env []string, enumerate modulemap.Enumerator, pid int) (*Runtime, error) {
	cfg, err := config.Parse(env)
	if err != nil {
		return nil, err
	}
	return New(cfg, enumerate, pid)
}

// New builds a Runtime from an already-parsed Config, for callers other
// than Global that need their own instance driven by something other than
// the real process's environment and loaded modules — namely
// cmd/cmptrace-replay, which drives a synthetic modulemap.Enumerator built
// from a YAML scenario file rather than /proc/self/maps.
func New(cfg *config.Config, enumerate modulemap.Enumerator, pid int) (*Runtime, error) {
	logger := slog.Default()
	modules := modulemap.New(enumerate)
	store := tracestore.New(modules)
	m := metrics.New()

	r := &Runtime{
		cfg:     cfg,
		modules: modules,
		store:   store,
		metrics: m,
		logger:  logger,
		pid:     pid,
		wide:    is64BitTarget(),
	}

	if cfg.AuditLedger {
		path := fmt.Sprintf("%s/cmp.ledger.%d.jsonl", cfg.OutputDir, pid)
		l, err := ledger.Open(path)
		if err != nil {
			return nil, fmt.Errorf("runtime: opening ledger: %w", err)
		}
		r.ledger = l
	}

	if cfg.MetricsAddr != "" {
		r.startMetricsServer()
	}

	return r, nil
}

func (r *Runtime) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Warn("cmptrace: metrics server stopped", slog.Any("error", err))
		}
	}()
}

// is64BitTarget reports whether the on-disk trace record encoding should
// use the 8-byte (64-bit target) word or the 4-byte hash-truncated one
// (spec.md §3/§6).
func is64BitTarget() bool {
	return bits.UintSize == 64
}

// Enabled reports whether the library was enabled at startup
// (Configuration.enabled).
func (r *Runtime) Enabled() bool {
	return r.cfg.Enabled
}

// Compare1 implements trace_cmp1/trace_const_cmp1: always a no-op, so it
// never touches the lock.
func (r *Runtime) Compare1() {}

// NonConstCompare implements trace_cmp{2,4,8}.
func (r *Runtime) NonConstCompare(pc uint64, width int, x, y uint64) {
	if !r.cfg.Enabled {
		return
	}
	tags := dispatch.NonConstCompare(width, x, y, r.cfg.TraceNonConstCmp)
	if len(tags) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(pc, tags)
}

// ConstCompare implements trace_const_cmp{2,4,8}.
func (r *Runtime) ConstCompare(pc uint64, width int, constant, value uint64) {
	if !r.cfg.Enabled {
		return
	}
	tags := dispatch.ConstCompare(width, constant, value)
	if len(tags) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(pc, tags)
}

// Switch implements trace_switch. cases is the raw case-constants slice
// (the cgo trampoline has already stripped the count/bit-width header
// fields out into count/bitWidth). If the dispatcher determines no case
// exceeds 255, zeroHeader is invoked while mu is held, so the caller can
// overwrite cases_array[0] in place to memoize that this switch will never
// need revisiting — cases_array is mutated only under the lock, per
// spec.md §4.4/§9 and §5. zeroHeader may be nil.
func (r *Runtime) Switch(pc uint64, value, bitWidth uint64, cases []uint64, zeroHeader func()) {
	if !r.cfg.Enabled {
		return
	}
	res := dispatch.Switch(value, bitWidth, cases)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(res.Records) > 0 {
		r.record(pc, res.Records)
	}
	if res.ZeroCaseCount && zeroHeader != nil {
		zeroHeader()
	}
}

// MemCmp implements weak_hook_memcmp. It uses try-acquisition, per spec.md
// §5: the library's own comparison work may re-enter this hook on some
// platforms, and a failed try-lock simply drops the callback silently.
func (r *Runtime) MemCmp(pc uint64, n int, a, b []byte) {
	if !r.cfg.Enabled || !r.cfg.TraceMemoryCmp {
		return
	}
	tags := dispatch.MemCmp(n, a, b)
	if len(tags) == 0 {
		return
	}
	r.tryRecord(pc, tags)
}

// StrnCmp implements weak_hook_strncmp and weak_hook_strncasecmp.
func (r *Runtime) StrnCmp(pc uint64, a, b []byte, n int) {
	if !r.cfg.Enabled || !r.cfg.TraceMemoryCmp {
		return
	}
	tags := dispatch.StrnCmp(a, b, n)
	if len(tags) == 0 {
		return
	}
	r.tryRecord(pc, tags)
}

// StrCmp implements weak_hook_strcmp and weak_hook_strcasecmp.
func (r *Runtime) StrCmp(pc uint64, a, b []byte) {
	if !r.cfg.Enabled || !r.cfg.TraceMemoryCmp {
		return
	}
	tags := dispatch.StrCmp(a, b)
	if len(tags) == 0 {
		return
	}
	r.tryRecord(pc, tags)
}

// record stores every tag for pc. Caller must hold r.mu.
func (r *Runtime) record(pc uint64, tags []dispatch.Tags) {
	for _, tag := range tags {
		resolved, inserted := r.store.TrySaveFiltered(pc, tag.Tag1, tag.Tag2, r.cfg.MatchesFilter)
		r.metrics.ObserveTrySave(resolved, inserted)
	}
}

// tryRecord acquires the lock non-blockingly before calling record; a
// failed acquisition drops the callback silently, per spec.md §5.
func (r *Runtime) tryRecord(pc uint64, tags []dispatch.Tags) {
	if !r.mu.TryLock() {
		return
	}
	defer r.mu.Unlock()
	r.record(pc, tags)
}

// Flush drives the Dumper (and, if enabled, the Ledger) over every module
// currently present in the TraceStore. It is idempotent: only the first
// call does any work, matching the "triggered once, from the process-exit
// hook" wording of spec.md §4.5. cmd/libcmptrace calls this from its
// cgo-registered exit hook.
func (r *Runtime) Flush() {
	if !r.cfg.Enabled {
		return
	}
	r.flushOnce.Do(r.flush)
}

func (r *Runtime) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := dump.New(r.cfg.OutputDir, r.pid, r.wide)
	results, err := d.DumpAll(r.store)
	if err != nil {
		r.metrics.DumpErrors.Add(1)
		fmt.Fprintf(os.Stderr, "cmptrace: fatal dump error: %v\n", err)
		os.Exit(1)
	}
	r.metrics.DumpsWritten.Add(int64(len(results)))

	if r.ledger == nil {
		return
	}
	for _, res := range results {
		sum := ledger.HashFile(res.Bytes)
		if _, err := r.ledger.Append(res.ModuleName, res.Path, res.RecordCount, sum); err != nil {
			r.logger.Warn("cmptrace: ledger append failed", slog.Any("error", err))
		}
	}
	if err := r.ledger.Close(); err != nil {
		r.logger.Warn("cmptrace: ledger close failed", slog.Any("error", err))
	}
}
