// Stub module enumerator for platforms with no known module-listing
// facility wired up yet: compiles everywhere else, always reports no
// modules found so every Locate call silently drops its record, exactly as
// spec.md requires when enumeration fails.
//
//go:build !linux && !darwin

package modulemap

// Default returns an enumerator that reports zero modules.
func Default() Enumerator {
	return func() ([]Module, error) { return nil, nil }
}
