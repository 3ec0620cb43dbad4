package exclusion

import "github.com/haukened/risklists/internal/risk/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter pre-screens host names against the rule set. MightMatch never
// returns false for a host that some added rule covers.
type BloomFilter interface {
	AddRule(r domain.ExclusionRule)
	MightMatch(host string) bool
}

// BloomFactory builds a filter sized for a rule set, so that one host lookup
// (one probe per suffix anchor) stays near fpRate.
type BloomFactory interface {
	New(rules []domain.ExclusionRule, fpRate float64) BloomFilter
}

// DecisionCache caches exclusion decisions by canonical host name with basic metrics.
type DecisionCache interface {
	Get(name string) (domain.ExclusionDecision, bool)
	Put(name string, d domain.ExclusionDecision)
	Len() int
	Stats() CacheStats
}

// CacheStats are cumulative DecisionCache counters. Hits are split by
// outcome so a run shows how often cached exclusions were reused.
type CacheStats struct {
	ExcludedHits uint64
	AllowedHits  uint64
	Misses       uint64
	Evictions    uint64
}

// Hits returns all cache hits.
func (s CacheStats) Hits() uint64 { return s.ExcludedHits + s.AllowedHits }

// Repository answers whether a host belongs to the exclusion set.
// Decide returns a value-type decision for the host; Rules lists the set.
type Repository interface {
	Decide(name string) domain.ExclusionDecision
	IsExcluded(name string) bool
	Rules() []domain.ExclusionRule
	Stats() Stats
}

// Stats exposes repository-level counters.
type Stats struct {
	Rules        int
	Cached       int // decisions currently held by the cache
	ExcludedHits uint64
	AllowedHits  uint64
	Misses       uint64
	Evictions    uint64
	BloomSkip    uint64 // lookups answered by the bloom filter alone
}
