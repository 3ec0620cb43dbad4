package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/risklists/internal/risk/domain"
	"github.com/haukened/risklists/internal/risk/repos/exclusion"
)

// anchorProbes is the number of suffix anchors a typical host lookup
// probes ("a.b.example.com" has four).
const anchorProbes = 4

// factory implements exclusion.BloomFactory on top of a BloomSizer.
type factory struct {
	sizer exclusion.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters from the rule mix.
func NewFactory() exclusion.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs a filter holding rules. With suffix rules present each
// lookup makes one exact probe plus one per anchor, so the per-probe rate
// is tightened to keep the per-lookup rate near fpRate.
func (f factory) New(rules []domain.ExclusionRule, fpRate float64) exclusion.BloomFilter {
	m, k := f.sizer.Size(uint64(len(rules)), perProbeRate(rules, fpRate))
	flt := &filter{bf: bitsbloom.New(uint(m), uint(k))}
	for _, r := range rules {
		flt.AddRule(r)
	}
	return flt
}

// perProbeRate splits the lookup false-positive budget across probes.
func perProbeRate(rules []domain.ExclusionRule, fpRate float64) float64 {
	for _, r := range rules {
		if r.IsSuffix() {
			return fpRate / (1 + anchorProbes)
		}
	}
	return fpRate
}
