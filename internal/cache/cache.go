package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nuance-dev/convierto-sub000/internal/logging"
	"github.com/nuance-dev/convierto-sub000/internal/metrics"
)

// DefaultRetention is how long an inactive cache entry survives.
const DefaultRetention = 24 * time.Hour

// ActiveFunc reports whether a cache path is currently in use and must not
// be swept.
type ActiveFunc func(path string) bool

// Manager allocates temporary output locations and reclaims stale ones.
type Manager struct {
	root      string
	retention time.Duration
	isActive  ActiveFunc

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a cache manager rooted at dir. The directory is created if
// missing and swept once so entries left by a previous run do not linger.
// A nil isActive treats every entry as inactive.
func New(dir string, retention time.Duration, isActive ActiveFunc) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if isActive == nil {
		isActive = func(string) bool { return false }
	}
	m := &Manager{
		root:      dir,
		retention: retention,
		isActive:  isActive,
		now:       time.Now,
	}
	// Entries left behind by a previous run are reclaimed immediately
	// rather than waiting for the first idle transition.
	m.Sweep()
	return m, nil
}

// Root returns the cache root directory.
func (m *Manager) Root() string {
	return m.root
}

// TempPath returns a fresh unique output path with the given extension.
// If the generated path somehow already exists, the stale entry is removed
// first; creation never fails due to collision.
func (m *Manager) TempPath(ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	path := filepath.Join(m.root, name)

	if _, err := os.Lstat(path); err == nil {
		logging.Warn("Temp path collision at %s, removing stale entry", path)
		if err := os.RemoveAll(path); err != nil {
			return "", fmt.Errorf("failed to clear colliding temp path %s: %w", path, err)
		}
	}

	metrics.CacheTempPathsTotal.Inc()
	return path, nil
}

// TempDir creates and returns a fresh unique directory, used for multi-file
// outputs such as rasterized document pages.
func (m *Manager) TempDir() (string, error) {
	path := filepath.Join(m.root, uuid.NewString())
	if _, err := os.Lstat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return "", fmt.Errorf("failed to clear colliding temp dir %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir %s: %w", path, err)
	}
	metrics.CacheTempPathsTotal.Inc()
	return path, nil
}

// Sweep removes cache entries older than the retention window that are not
// marked active. It returns how many entries were removed. Failures on
// individual entries are logged and skipped.
func (m *Manager) Sweep() int {
	metrics.CacheSweepsTotal.Inc()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		logging.Warn("Cache sweep could not read %s: %v", m.root, err)
		return 0
	}

	cutoff := m.now().Add(-m.retention)
	removed := 0

	for _, entry := range entries {
		path := filepath.Join(m.root, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logging.Warn("Cache sweep skipping %s: %v", path, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if m.isActive(path) {
			logging.Debug("Cache sweep sparing active entry %s", path)
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			logging.Warn("Cache sweep failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.CacheEntriesRemovedTotal.Add(float64(removed))
		logging.Info("Cache sweep removed %d stale entries from %s", removed, m.root)
	}
	return removed
}
