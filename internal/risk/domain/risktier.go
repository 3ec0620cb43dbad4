package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RiskTier is the weighted risk classification App Discovery assigns to an application.
type RiskTier uint8

const (
	RiskVeryLow RiskTier = iota + 1
	RiskLow
	RiskMedium
	RiskHigh
	RiskVeryHigh
)

// outputPrefix and outputExt frame the extractor artifact name: output_<slug>.json
const (
	outputPrefix = "output_"
	outputExt    = ".json"
)

var riskTierLabels = map[RiskTier]string{
	RiskVeryLow:  "very low",
	RiskLow:      "low",
	RiskMedium:   "medium",
	RiskHigh:     "high",
	RiskVeryHigh: "very high",
}

// RiskTiers lists every recognized tier from lowest to highest.
func RiskTiers() []RiskTier {
	return []RiskTier{RiskVeryLow, RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}
}

// ParseRiskTier converts an API or operator label into a RiskTier.
// Matching is case-insensitive and exact after trimming surrounding whitespace.
func ParseRiskTier(s string) (RiskTier, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	for _, t := range RiskTiers() {
		if riskTierLabels[t] == label {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported risk tier %q (want one of %s)", ErrInvalidArgument, s, riskTierChoices())
}

func riskTierChoices() string {
	labels := make([]string, 0, len(riskTierLabels))
	for _, t := range RiskTiers() {
		labels = append(labels, fmt.Sprintf("%q", riskTierLabels[t]))
	}
	return strings.Join(labels, ", ")
}

// String returns the API label, e.g. "very high".
func (t RiskTier) String() string {
	if l, ok := riskTierLabels[t]; ok {
		return l
	}
	return fmt.Sprintf("RiskTier(%d)", t)
}

// Valid reports whether t is one of the five recognized tiers.
func (t RiskTier) Valid() bool {
	_, ok := riskTierLabels[t]
	return ok
}

// Matches reports whether an API weightedRisk label names this tier.
func (t RiskTier) Matches(label string) bool {
	return t.Valid() && strings.EqualFold(strings.TrimSpace(label), riskTierLabels[t])
}

// Slug returns the label with spaces replaced by underscores, e.g. "very_high".
func (t RiskTier) Slug() string {
	return strings.ReplaceAll(t.String(), " ", "_")
}

// OutputFileName returns the extractor artifact name for the tier.
func (t RiskTier) OutputFileName() string {
	return outputPrefix + t.Slug() + outputExt
}

// ListName returns the destination list name managed for the tier.
func (t RiskTier) ListName() string {
	return t.Slug()
}

// ParseOutputFileName recovers the tier from an extractor artifact path.
func ParseOutputFileName(path string) (RiskTier, error) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, outputPrefix) || !strings.HasSuffix(base, outputExt) {
		return 0, fmt.Errorf("%w: %s is not named %s<risk_tier>%s", ErrInvalidInput, base, outputPrefix, outputExt)
	}
	slug := strings.TrimSuffix(strings.TrimPrefix(base, outputPrefix), outputExt)
	for _, t := range RiskTiers() {
		if t.Slug() == strings.ToLower(slug) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %s does not name a risk tier", ErrInvalidInput, base)
}

// MarshalText encodes the tier as its API label.
func (t RiskTier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid risk tier %d", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes an API label.
func (t *RiskTier) UnmarshalText(b []byte) error {
	v, err := ParseRiskTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
