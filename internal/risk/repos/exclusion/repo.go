package exclusion

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/haukened/risklists/internal/risk/common/utils"
	"github.com/haukened/risklists/internal/risk/domain"
)

// defaultFPRate is the Bloom filter target false-positive rate.
const defaultFPRate = 0.01

// repository implements Repository by composing a Bloom filter, a
// DecisionCache and an in-memory rule index. Reads run bloom → cache → index.
// The rule set is fixed at construction.
type repository struct {
	mu        sync.RWMutex
	rules     []domain.ExclusionRule
	exact     map[string]domain.ExclusionRule
	suffix    map[string]domain.ExclusionRule
	cache     DecisionCache
	bloom     BloomFilter
	bloomSkip uint64
}

// NewRepository constructs a Repository over rules. Rules are de-duplicated
// by name and kind; the first occurrence wins.
func NewRepository(rules []domain.ExclusionRule, cache DecisionCache, factory BloomFactory) Repository {
	r := &repository{
		exact:  make(map[string]domain.ExclusionRule),
		suffix: make(map[string]domain.ExclusionRule),
		cache:  cache,
	}
	for _, ru := range rules {
		ru.Name = utils.CanonicalDNSName(ru.Name)
		if ru.Name == "" {
			continue
		}
		idx := r.exact
		if ru.IsSuffix() {
			idx = r.suffix
		}
		if _, dup := idx[ru.Name]; dup {
			continue
		}
		idx[ru.Name] = ru
		r.rules = append(r.rules, ru)
	}

	if factory != nil {
		r.bloom = factory.New(r.rules, defaultFPRate)
	}
	return r
}

// Decide returns the exclusion decision for a host name.
func (r *repository) Decide(name string) domain.ExclusionDecision {
	cn := utils.CanonicalDNSName(name)
	if cn == "" {
		return domain.NotExcluded()
	}
	// 1) checkBloom: early-allow if definitively negative
	if !r.checkBloom(cn) {
		atomic.AddUint64(&r.bloomSkip, 1)
		return domain.NotExcluded()
	}
	// 2) checkCache
	if d, ok := r.checkCache(cn); ok {
		return d
	}
	// 3) checkIndex
	dec := r.checkIndex(cn)
	// 4) updateCache
	r.updateCache(cn, dec)
	return dec
}

// IsExcluded is a convenience accessor over Decide.
func (r *repository) IsExcluded(name string) bool {
	return r.Decide(name).Excluded
}

// Rules returns a copy of the rule set.
func (r *repository) Rules() []domain.ExclusionRule {
	return append([]domain.ExclusionRule(nil), r.rules...)
}

// Stats reports rule count and cache counters.
func (r *repository) Stats() Stats {
	st := Stats{Rules: len(r.rules), BloomSkip: atomic.LoadUint64(&r.bloomSkip)}
	if r.cache != nil {
		r.mu.RLock()
		st.Cached = r.cache.Len()
		r.mu.RUnlock()
		cs := r.cache.Stats()
		st.ExcludedHits, st.AllowedHits, st.Misses, st.Evictions = cs.ExcludedHits, cs.AllowedHits, cs.Misses, cs.Evictions
	}
	return st
}

// checkBloom returns true if the index must be consulted (maybe-positive),
// or false if the name is definitely not excluded. Without a filter it
// always returns true.
func (r *repository) checkBloom(cn string) bool {
	if r.bloom == nil {
		return true
	}
	return r.bloom.MightMatch(cn)
}

func (r *repository) checkCache(cn string) (domain.ExclusionDecision, bool) {
	if r.cache == nil {
		return domain.ExclusionDecision{}, false
	}
	r.mu.RLock()
	d, ok := r.cache.Get(cn)
	r.mu.RUnlock()
	return d, ok
}

// checkIndex consults the authoritative rule index: exact first, then
// suffix anchors from the full name up to the top-level label.
func (r *repository) checkIndex(cn string) domain.ExclusionDecision {
	if ru, ok := r.exact[cn]; ok {
		return decisionFor(ru)
	}
	a := cn
	for {
		if ru, ok := r.suffix[a]; ok {
			return decisionFor(ru)
		}
		i := strings.IndexByte(a, '.')
		if i < 0 {
			break
		}
		a = a[i+1:]
	}
	return domain.NotExcluded()
}

func decisionFor(ru domain.ExclusionRule) domain.ExclusionDecision {
	return domain.ExclusionDecision{Excluded: true, MatchedRule: ru.Name, Source: ru.Source, Kind: ru.Kind}
}

func (r *repository) updateCache(cn string, dec domain.ExclusionDecision) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	r.cache.Put(cn, dec)
	r.mu.Unlock()
}
