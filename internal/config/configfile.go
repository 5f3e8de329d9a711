package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverlay is the optional CMPTRACE_CONFIG YAML document. Its fields are
// a strict subset of Config. OutputDir can also be set through ASAN_OPTIONS'
// coverage_dir, which takes precedence; ModuleFilter has no environment
// variable of its own.
type fileOverlay struct {
	OutputDir    string   `yaml:"output_dir"`
	ModuleFilter []string `yaml:"module_filter"`
}

// loadConfigFile reads and parses the YAML file at path. A missing file is
// a fatal error (same class as a malformed ASAN_OPTIONS); an empty file
// parses to a zero-value overlay and is not an error.
func loadConfigFile(path string) (fileOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileOverlay{}, fmt.Errorf("config: cannot read CMPTRACE_CONFIG file %q: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fileOverlay{}, fmt.Errorf("config: cannot parse CMPTRACE_CONFIG file %q: %w", path, err)
	}
	return overlay, nil
}
