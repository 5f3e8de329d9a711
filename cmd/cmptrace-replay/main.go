// Command cmptrace-replay drives internal/runtime through a YAML-described
// sequence of synthetic comparisons and flushes the resulting .sancov
// files, without needing a real sanitizer-instrumented binary to link
// against cmd/libcmptrace. It exists for local testing and CI smoke tests
// of the whole dispatch/tracestore/dump pipeline.
//
// Its flag parsing and structured-logging shape follow cmd/agent/main.go;
// unlike the agent, which runs until a shutdown signal, replay is a
// one-shot batch tool: it plays the scenario once, flushes, and exits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cmptrace/runtime/internal/config"
	"github.com/cmptrace/runtime/internal/modulemap"
	"github.com/cmptrace/runtime/internal/runtime"
)

func main() {
	scriptPath := flag.String("script", "", "path to a YAML scenario file (required)")
	enable := flag.Bool("enable", false, "force-enable the library regardless of ASAN_OPTIONS")
	flag.Parse()

	logger := newLogger()
	slog.SetDefault(logger)

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "cmptrace-replay: -script is required")
		os.Exit(1)
	}

	sc, err := loadScenario(*scriptPath)
	if err != nil {
		logger.Error("failed to load scenario", slog.String("path", *scriptPath), slog.Any("error", err))
		os.Exit(1)
	}

	cfg, err := config.Parse(os.Environ())
	if err != nil {
		logger.Error("configuration error", slog.Any("error", err))
		os.Exit(1)
	}
	if *enable {
		cfg.Enabled = true
	}

	rt, err := runtime.New(cfg, sc.enumerator(), os.Getpid())
	if err != nil {
		logger.Error("failed to construct runtime", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("replaying scenario",
		slog.String("path", *scriptPath),
		slog.Int("modules", len(sc.Modules)),
		slog.Int("comparisons", len(sc.Comparisons)),
		slog.Bool("enabled", cfg.Enabled),
	)

	for i, c := range sc.Comparisons {
		if err := c.replay(rt); err != nil {
			logger.Warn("skipping comparison", slog.Int("index", i), slog.String("type", c.Type), slog.Any("error", err))
		}
	}

	rt.Flush()
	logger.Info("replay complete", slog.String("output_dir", cfg.OutputDir))
}

// newLogger mirrors cmd/agent's structured-logging setup: JSON records to
// stderr, so a scenario's diagnostics never collide with anything replay
// might one day write to stdout.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// scenario is the YAML document shape accepted by -script.
type scenario struct {
	Modules     []moduleSpec     `yaml:"modules"`
	Comparisons []comparisonSpec `yaml:"comparisons"`
}

// moduleSpec describes one synthetic loaded module, standing in for what a
// real modulemap.Enumerator would have discovered from /proc/self/maps or
// dyld.
type moduleSpec struct {
	Name string `yaml:"name"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// comparisonSpec describes one synthetic callback. Type selects which
// fields are meaningful; see replay for the mapping to Runtime methods.
type comparisonSpec struct {
	Type string `yaml:"type"`
	PC   uint64 `yaml:"pc"`

	// const_cmp / non_const_cmp
	Width    int    `yaml:"width"`
	Constant uint64 `yaml:"constant"`
	Value    uint64 `yaml:"value"`
	X        uint64 `yaml:"x"`
	Y        uint64 `yaml:"y"`

	// switch
	BitWidth uint64   `yaml:"bit_width"`
	Cases    []uint64 `yaml:"cases"`

	// memcmp / strncmp / strcmp
	N int    `yaml:"n"`
	A string `yaml:"a"`
	B string `yaml:"b"`
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// enumerator builds a fixed modulemap.Enumerator from the scenario's
// module list, standing in for a platform-specific one.
func (sc *scenario) enumerator() modulemap.Enumerator {
	mods := make([]modulemap.Module, len(sc.Modules))
	for i, m := range sc.Modules {
		mods[i] = modulemap.Module{Name: m.Name, BaseAddress: m.Base, Size: m.Size}
	}
	return func() ([]modulemap.Module, error) { return mods, nil }
}

// replay drives one comparisonSpec through the matching Runtime method.
func (c comparisonSpec) replay(rt *runtime.Runtime) error {
	switch c.Type {
	case "const_cmp":
		rt.ConstCompare(c.PC, c.Width, c.Constant, c.Value)
	case "non_const_cmp":
		rt.NonConstCompare(c.PC, c.Width, c.X, c.Y)
	case "switch":
		rt.Switch(c.PC, c.Value, c.BitWidth, c.Cases, nil)
	case "memcmp":
		rt.MemCmp(c.PC, c.N, []byte(c.A), []byte(c.B))
	case "strncmp":
		rt.StrnCmp(c.PC, []byte(c.A), []byte(c.B), c.N)
	case "strcmp":
		rt.StrCmp(c.PC, []byte(c.A), []byte(c.B))
	default:
		return fmt.Errorf("unknown comparison type %q", c.Type)
	}
	return nil
}
