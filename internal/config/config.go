// Package config parses the environment variables (and optional YAML
// overlay file) that configure the cmptrace runtime, following the
// teacher's read-then-validate Config shape but operating on an explicit
// environment slice rather than a fixed global, so callers can parse a
// synthetic environment in tests without touching process state.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the result of parsing the environment. Runtime only reads it;
// cmd/cmptrace-replay's -enable flag sets Enabled before a Runtime is
// built from it.
type Config struct {
	// Enabled is the master switch. Default false.
	Enabled bool
	// TraceNonConstCmp enables tracing of non-constant integer compares.
	// Default false.
	TraceNonConstCmp bool
	// TraceMemoryCmp enables tracing of memcmp/strcmp-family hooks.
	// Default true.
	TraceMemoryCmp bool
	// OutputDir is where the Dumper writes .sancov files. Default ".".
	OutputDir string
	// ModuleFilter is an optional list of glob patterns restricting which
	// modules ModuleMap will resolve PCs against, matched against a
	// module's short name with path/filepath.Match. An empty filter
	// matches every module.
	ModuleFilter []string
	// MetricsAddr, if non-empty, is the address Runtime should serve
	// Metrics.Handler() on (CMPTRACE_METRICS_ADDR). Empty means no HTTP
	// listener is started.
	MetricsAddr string
	// AuditLedger enables the hash-chained Ledger of Dumper flush events
	// (CMPTRACE_AUDIT_LEDGER=1). Default false.
	AuditLedger bool
}

func defaultConfig() *Config {
	return &Config{
		Enabled:          false,
		TraceNonConstCmp: false,
		TraceMemoryCmp:   true,
		OutputDir:        ".",
	}
}

// Parse builds a Config from env, a slice of "KEY=VALUE" strings in the
// same shape as os.Environ(). It recognizes ASAN_OPTIONS,
// TRACE_NONCONST_CMP, TRACE_MEMORY_CMP, and CMPTRACE_CONFIG exactly as
// documented in spec.md §4.1 and SPEC_FULL.md §3. A malformed ASAN_OPTIONS
// list, or a CMPTRACE_CONFIG file that cannot be opened or parsed, is a
// fatal configuration error and is returned as a non-nil error.
func Parse(env []string) (*Config, error) {
	vars := toMap(env)
	cfg := defaultConfig()

	if path, ok := vars["CMPTRACE_CONFIG"]; ok && path != "" {
		overlay, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if overlay.OutputDir != "" {
			cfg.OutputDir = overlay.OutputDir
		}
		cfg.ModuleFilter = overlay.ModuleFilter
	}

	// Environment variables take precedence over the file overlay for any
	// field both of them set.
	if raw, ok := vars["ASAN_OPTIONS"]; ok {
		opts, err := parseASANOptions(raw)
		if err != nil {
			return nil, fmt.Errorf("config: ASAN_OPTIONS: %w", err)
		}
		if v, ok := opts["coverage"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.Enabled = n != 0
			}
		}
		if v, ok := opts["coverage_dir"]; ok && v != "" {
			cfg.OutputDir = v
		}
	}

	if v, ok := vars["TRACE_NONCONST_CMP"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TraceNonConstCmp = n != 0
		}
	}

	if v, ok := vars["TRACE_MEMORY_CMP"]; ok {
		// Inverted polarity (spec.md §4.1): presence of a zero disables;
		// any non-zero value leaves the default (on) in force.
		if n, err := strconv.Atoi(v); err == nil && n == 0 {
			cfg.TraceMemoryCmp = false
		}
	}

	if v, ok := vars["CMPTRACE_METRICS_ADDR"]; ok {
		cfg.MetricsAddr = v
	}

	if v, ok := vars["CMPTRACE_AUDIT_LEDGER"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuditLedger = n != 0
		}
	}

	return cfg, nil
}

// MatchesFilter reports whether name passes cfg's ModuleFilter: true when
// the filter is empty, or when name matches at least one glob pattern.
func (c *Config) MatchesFilter(name string) bool {
	return matchesFilter(c.ModuleFilter, name)
}

func toMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}
