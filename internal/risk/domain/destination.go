package domain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/haukened/risklists/internal/risk/common/utils"
)

// DestinationType is the kind of a destination list entry.
type DestinationType string

const (
	DestinationDomain DestinationType = "domain"
	DestinationURL    DestinationType = "url"
)

// DestinationList is a named destination list held by the Policies API.
type DestinationList struct {
	ID               int64
	Name             string
	Access           string
	IsGlobal         bool
	DestinationCount int
}

// DestinationEntry is one URL or domain to be added to a destination list.
type DestinationEntry struct {
	Destination string          `json:"destination"`
	Type        DestinationType `json:"type"`
	Comment     string          `json:"comment,omitempty"`
}

// NewDestinationEntry classifies a raw string as a destination entry.
//
//   - bare names ("example.com") become domain entries
//   - "www." hosts and scheme URLs without a path collapse to their host
//   - URLs carrying a non-root path stay whole as url entries
func NewDestinationEntry(raw, comment string) (DestinationEntry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DestinationEntry{}, fmt.Errorf("destination must not be empty")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if !strings.HasPrefix(lower, "www.") {
			return DestinationEntry{Destination: utils.CanonicalDNSName(raw), Type: DestinationDomain, Comment: comment}, nil
		}
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return DestinationEntry{}, fmt.Errorf("parse destination %q: %w", raw, err)
	}
	if u.Path != "" && u.Path != "/" {
		return DestinationEntry{Destination: raw, Type: DestinationURL, Comment: comment}, nil
	}
	host := utils.CanonicalDNSName(u.Hostname())
	if host == "" {
		return DestinationEntry{}, fmt.Errorf("destination %q has no host", raw)
	}
	return DestinationEntry{Destination: host, Type: DestinationDomain, Comment: comment}, nil
}

// Key returns the identity used to compare entries with remote membership.
func (e DestinationEntry) Key() string {
	return destinationKey(e.Destination)
}

func destinationKey(s string) string {
	return utils.CanonicalDNSName(s)
}

// MissingEntries returns the candidates whose destination is not already in
// existing. Candidate order is preserved and duplicate candidates are dropped.
func MissingEntries(candidates []DestinationEntry, existing []string) []DestinationEntry {
	present := make(map[string]struct{}, len(existing)+len(candidates))
	for _, e := range existing {
		present[destinationKey(e)] = struct{}{}
	}
	out := make([]DestinationEntry, 0, len(candidates))
	for _, c := range candidates {
		k := c.Key()
		if _, ok := present[k]; ok {
			continue
		}
		present[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
