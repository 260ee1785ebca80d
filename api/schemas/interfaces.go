package schemas

import (
	"context"
)

// Source is the contract every vulnerability database client satisfies.
// Implementations own their severity-normalization adapter, so records come
// back already on the common [0,1] scale. Fetch must be idempotent: the
// retry layer may invoke it several times for one logical query.
type Source interface {
	// Name returns the stable identifier used in cache keys and provenance
	// lists (e.g. "osv", "nvd", "github").
	Name() string

	// Fetch returns every known vulnerability record for the given package
	// version. Failures are reported as *SourceError so the caller can
	// distinguish transient from permanent conditions.
	Fetch(ctx context.Context, eco Ecosystem, pkg, version string) ([]VulnerabilityRecord, error)
}

// VulnCache persists normalized source responses between runs. A corrupt,
// malformed, or expired entry is a miss, never an error: Get returns
// (nil, false) and the caller refetches.
type VulnCache interface {
	Get(key CacheKey) ([]VulnerabilityRecord, bool)
	Put(key CacheKey, raw []byte, records []VulnerabilityRecord) error
}

// CacheKey identifies one cached source response.
type CacheKey struct {
	Ecosystem Ecosystem
	Package   string
	Version   string
	Source    string
}
