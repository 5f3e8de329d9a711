// Package metrics – in-process counters for the cmptrace runtime, exposed
// in the Prometheus text exposition format.
//
// # Overview
//
// Metrics tracks operational counters for the callback dispatcher and the
// Dumper. All fields are updated atomically so they can be read
// concurrently from an HTTP handler without holding the coverage lock.
//
// # Prometheus text format
//
// Handler returns an [net/http.Handler] that serves the registered metrics
// in the standard Prometheus text exposition format on every GET request.
// internal/runtime wires it at /metrics when CMPTRACE_METRICS_ADDR is set:
//
//	m := metrics.New()
//	http.Handle("/metrics", m.Handler())
//
// # Metric catalogue
//
//	cmptrace_records_emitted_total   – counter: trace records newly inserted into the TraceStore
//	cmptrace_records_deduped_total   – counter: try_save calls that found an existing entry
//	cmptrace_records_dropped_total   – counter: try_save calls whose PC resolved to no module
//	cmptrace_dumps_written_total     – counter: .sancov files successfully written
//	cmptrace_dump_errors_total       – counter: .sancov writes that failed
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Metrics holds all Prometheus counters for the runtime. The zero value is
// ready to use; all counters start at zero.
type Metrics struct {
	RecordsEmitted atomic.Int64
	RecordsDeduped atomic.Int64
	RecordsDropped atomic.Int64
	DumpsWritten   atomic.Int64
	DumpErrors     atomic.Int64
}

// New allocates a new Metrics value with all counters at zero.
func New() *Metrics {
	return &Metrics{}
}

// ObserveTrySave folds one TraceStore.TrySave outcome into the counters:
// resolved=false counts as a drop, resolved=true && !inserted counts as a
// dedup hit, resolved=true && inserted counts as a new record emitted.
func (m *Metrics) ObserveTrySave(resolved, inserted bool) {
	switch {
	case !resolved:
		m.RecordsDropped.Add(1)
	case inserted:
		m.RecordsEmitted.Add(1)
	default:
		m.RecordsDeduped.Add(1)
	}
}

// metricLine is a single Prometheus metric family descriptor plus its
// current value.
type metricLine struct {
	help  string
	kind  string // "counter" or "gauge"
	name  string
	value int64
}

// snapshot captures the current values of all metrics in a consistent order.
func (m *Metrics) snapshot() []metricLine {
	return []metricLine{
		{
			help:  "Total number of trace records newly inserted into the trace store.",
			kind:  "counter",
			name:  "cmptrace_records_emitted_total",
			value: m.RecordsEmitted.Load(),
		},
		{
			help:  "Total number of try_save calls that found an already-recorded entry.",
			kind:  "counter",
			name:  "cmptrace_records_deduped_total",
			value: m.RecordsDeduped.Load(),
		},
		{
			help:  "Total number of try_save calls whose PC did not resolve to any known module.",
			kind:  "counter",
			name:  "cmptrace_records_dropped_total",
			value: m.RecordsDropped.Load(),
		},
		{
			help:  "Total number of .sancov files successfully written at exit.",
			kind:  "counter",
			name:  "cmptrace_dumps_written_total",
			value: m.DumpsWritten.Load(),
		},
		{
			help:  "Total number of .sancov writes that failed.",
			kind:  "counter",
			name:  "cmptrace_dump_errors_total",
			value: m.DumpErrors.Load(),
		},
	}
}

// Handler returns an [http.Handler] that writes all runtime metrics in the
// Prometheus text exposition format on every GET request.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		writeMetrics(w, m.snapshot())
	})
}

// writeMetrics serializes lines into Prometheus text exposition format.
func writeMetrics(w io.Writer, lines []metricLine) {
	for _, l := range lines {
		fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.kind)
		fmt.Fprintf(w, "%s %d\n", l.name, l.value)
	}
}
