package config

import "path/filepath"

// matchesFilter reports whether name matches at least one glob pattern in
// filters. An empty filter list matches everything.
func matchesFilter(filters []string, name string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, pat := range filters {
		if pat == "" {
			return true
		}
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}
