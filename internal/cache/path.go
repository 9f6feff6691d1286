package cache

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the cache database name when nothing else is set.
const DefaultFile = "rss_cache.sqlite3"

// DefaultPath resolves the cache database location: an explicit path
// wins, then the RSS_CACHE_DB override, then the default file name.
// Absolute paths are used as-is; relative ones land next to the
// executable so runs from different working directories share a cache.
func DefaultPath(path string) string {
	src := strings.TrimSpace(path)
	if src == "" {
		src = strings.TrimSpace(os.Getenv("RSS_CACHE_DB"))
	}
	if src == "" {
		src = DefaultFile
	}
	if filepath.IsAbs(src) {
		return src
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), src)
	}
	if abs, err := filepath.Abs(src); err == nil {
		return abs
	}
	return src
}
