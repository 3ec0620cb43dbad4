package bloom

import (
	"strings"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/risklists/internal/risk/domain"
)

// filter wraps a bits-and-blooms filter keyed by exclusion rule. Exact rules
// are stored under their name, suffix rules under the reversed name so they
// never collide with an exact key for the same host.
type filter struct {
	mu        sync.RWMutex
	bf        *bitsbloom.BloomFilter
	hasSuffix bool
}

func (f *filter) AddRule(r domain.ExclusionRule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Kind {
	case domain.ExclusionExact:
		f.bf.AddString(r.Name)
	case domain.ExclusionSuffix:
		f.bf.AddString(reverseString(r.Name))
		f.hasSuffix = true
	}
}

// MightMatch probes the exact key, then each suffix anchor of host from the
// full name up to the top-level label. Anchor probes are skipped when no
// suffix rule was added.
func (f *filter) MightMatch(host string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.bf.TestString(host) {
		return true
	}
	if !f.hasSuffix {
		return false
	}
	for a := host; a != ""; {
		if f.bf.TestString(reverseString(a)) {
			return true
		}
		i := strings.IndexByte(a, '.')
		if i < 0 {
			break
		}
		a = a[i+1:]
	}
	return false
}

// reverseString reverses the string runes.
func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
