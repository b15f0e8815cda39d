package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Adapter)
)

// Register adds an adapter factory for an engine version such as "3.4".
func Register(version string, factory func(*slog.Logger) Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[version] = factory
}

// Get retrieves the adapter factory registered for exactly version.
func Get(version string) (func(*slog.Logger) Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[version]
	return f, ok
}

// Versions returns all registered versions, oldest first.
func Versions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	versions := make([]string, 0, len(registry))
	for v := range registry {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return semver.Compare(canonical(versions[i]), canonical(versions[j])) < 0
	})
	return versions
}

// ForVersion creates the adapter for an engine running version. The newest
// registered shape not newer than version is used, so patch and unlisted
// minor releases reuse the last known layout.
// The logger parameter is passed to the adapter constructor (nil uses discard logger).
func ForVersion(version string, logger *slog.Logger) (Adapter, error) {
	want := canonical(version)
	if !semver.IsValid(want) {
		return nil, &UnsupportedVersionError{Version: version, Available: Versions()}
	}

	var best string
	for _, v := range Versions() {
		if semver.Compare(canonical(v), want) <= 0 {
			best = v
		}
	}
	if best == "" {
		return nil, &UnsupportedVersionError{Version: version, Available: Versions()}
	}

	factory, _ := Get(best)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// canonical turns "3.4" or "3.4.1" into a semver string.
func canonical(version string) string {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

// UnsupportedVersionError is returned when no adapter serves an engine version.
type UnsupportedVersionError struct {
	Version   string
	Available []string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported engine version %q\nSupported versions: %v\nHint: Check engine_version in planlineage.yaml", e.Version, e.Available)
}
