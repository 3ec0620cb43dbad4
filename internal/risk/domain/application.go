package domain

import (
	"fmt"
	"strings"
)

// Application is one App Discovery inventory item as seen by the extractor.
// Hosts holds the canonical host names found in the item, sorted and unique.
type Application struct {
	ID           int64
	Name         string
	WeightedRisk string
	Hosts        []string
}

// ApplicationRecord is one extracted application as written to output_<tier>.json.
type ApplicationRecord struct {
	ID       int64    `json:"id,omitempty"`
	Name     string   `json:"name"`
	Domains  []string `json:"domains"`
	RiskTier RiskTier `json:"riskTier"`
}

// Validate checks that the record can be turned into destination entries.
func (r ApplicationRecord) Validate() error {
	if r.ID < 0 {
		return fmt.Errorf("application %q has negative id %d", r.Name, r.ID)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("application name must not be empty")
	}
	if len(r.Domains) == 0 {
		return fmt.Errorf("application %q has no domains", r.Name)
	}
	for _, d := range r.Domains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("application %q has an empty domain", r.Name)
		}
	}
	if !r.RiskTier.Valid() {
		return fmt.Errorf("application %q has no risk tier", r.Name)
	}
	return nil
}
