package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/risklists/internal/risk/common/utils"
	"github.com/haukened/risklists/internal/risk/domain"
	"github.com/haukened/risklists/internal/risk/repos/exclusion"
)

// decisionCache is an LRU of exclusion decisions keyed by canonical host
// name. Hits are counted per outcome.
type decisionCache struct {
	lru          *lru.Cache[string, domain.ExclusionDecision]
	excludedHits atomic.Uint64
	allowedHits  atomic.Uint64
	misses       atomic.Uint64
	evictions    atomic.Uint64
}

// disabledCache always misses.
type disabledCache struct {
	misses atomic.Uint64
}

// New creates a DecisionCache holding up to size host decisions. A size
// <= 0 returns a disabled cache.
func New(size int) (exclusion.DecisionCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}

	dc := &decisionCache{}
	cache, err := lru.NewWithEvict(size, func(_ string, _ domain.ExclusionDecision) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

// Get looks up the decision for host. "Mail.Example.COM." and
// "mail.example.com" share one entry.
func (c *decisionCache) Get(host string) (domain.ExclusionDecision, bool) {
	d, ok := c.lru.Get(utils.CanonicalDNSName(host))
	switch {
	case !ok:
		c.misses.Add(1)
	case d.Excluded:
		c.excludedHits.Add(1)
	default:
		c.allowedHits.Add(1)
	}
	return d, ok
}

// Put stores the decision for host.
func (c *decisionCache) Put(host string, d domain.ExclusionDecision) {
	c.lru.Add(utils.CanonicalDNSName(host), d)
}

func (c *decisionCache) Len() int { return c.lru.Len() }

func (c *decisionCache) Stats() exclusion.CacheStats {
	return exclusion.CacheStats{
		ExcludedHits: c.excludedHits.Load(),
		AllowedHits:  c.allowedHits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
	}
}

func (d *disabledCache) Get(string) (domain.ExclusionDecision, bool) {
	d.misses.Add(1)
	return domain.ExclusionDecision{}, false
}

func (d *disabledCache) Put(string, domain.ExclusionDecision) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Stats() exclusion.CacheStats {
	return exclusion.CacheStats{Misses: d.misses.Load()}
}

var _ exclusion.DecisionCache = (*decisionCache)(nil)
var _ exclusion.DecisionCache = (*disabledCache)(nil)
