package sim

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CacheMode selects how the NN result cache behaves for a whole run.
// The set of modes is closed; every switch over it is exhaustive and
// panics on an unknown value.
type CacheMode int

const (
	// CacheNotActivated sends every frame through inference.
	CacheNotActivated CacheMode = iota
	// CacheRealFull always hits the cache; lookups and updates cost real time
	// under the nn_cache mutex.
	CacheRealFull
	// CacheIdealFull always hits the cache at zero cost. Bounds best-case throughput.
	CacheIdealFull
)

// CacheModes lists every mode in declaration order.
var CacheModes = []CacheMode{CacheNotActivated, CacheRealFull, CacheIdealFull}

func (m CacheMode) String() string {
	switch m {
	case CacheNotActivated:
		return "NOT_ACTIVATED"
	case CacheRealFull:
		return "REAL_FULL"
	case CacheIdealFull:
		return "IDEAL_FULL"
	default:
		return fmt.Sprintf("CacheMode(%d)", int(m))
	}
}

// ParseCacheMode converts a mode name (case-insensitive) into a CacheMode.
func ParseCacheMode(s string) (CacheMode, error) {
	for _, m := range CacheModes {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return CacheNotActivated, fmt.Errorf("unknown cache mode %q (want one of %v)", s, CacheModes)
}

// SearcherPort returns the output port a cache-searcher stage routes to.
func (m CacheMode) SearcherPort() int {
	switch m {
	case CacheNotActivated:
		return 0
	case CacheRealFull, CacheIdealFull:
		return 1
	default:
		panic(fmt.Sprintf("SearcherPort: unhandled %v", m))
	}
}

// ZeroCostCache reports whether cache lookups and updates take no time.
func (m CacheMode) ZeroCostCache() bool {
	switch m {
	case CacheNotActivated, CacheRealFull:
		return false
	case CacheIdealFull:
		return true
	default:
		panic(fmt.Sprintf("ZeroCostCache: unhandled %v", m))
	}
}

// Set implements pflag.Value so the mode can be bound directly to a CLI flag.
func (m *CacheMode) Set(s string) error {
	parsed, err := ParseCacheMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *CacheMode) Type() string {
	return "cacheMode"
}

// UnmarshalYAML accepts the mode name as a scalar.
func (m *CacheMode) UnmarshalYAML(value *yaml.Node) error {
	return m.Set(value.Value)
}

// MarshalText writes the mode name (used by both YAML and JSON encoders).
func (m CacheMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
