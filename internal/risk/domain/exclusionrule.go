package domain

import (
	"fmt"
	"strings"
)

// ExclusionRuleKind defines how a rule matches host names.
//
// exact  - matches the name only
// suffix - matches the name and any subdomain (apex-inclusive suffix)
type ExclusionRuleKind uint8

const (
	// ExclusionExact matches only the exact host.
	ExclusionExact ExclusionRuleKind = iota
	// ExclusionSuffix matches the host and all its subdomains.
	ExclusionSuffix
)

// String returns a stable string representation of the rule kind.
func (k ExclusionRuleKind) String() string {
	switch k {
	case ExclusionExact:
		return "exact"
	case ExclusionSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("ExclusionRuleKind(%d)", k)
	}
}

// ParseExclusionRuleKind converts "exact" or "suffix" (case-insensitive) into a kind.
func ParseExclusionRuleKind(s string) (ExclusionRuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return ExclusionExact, nil
	case "suffix":
		return ExclusionSuffix, nil
	default:
		return 0, fmt.Errorf("unsupported ExclusionRuleKind: %q", s)
	}
}

// ExclusionRule is a single entry of the exclusion set.
//
// Name is canonical (lower case, no trailing dot). Source identifies where
// the rule came from: "builtin", "env" or an exclusions file path.
type ExclusionRule struct {
	Name   string
	Kind   ExclusionRuleKind
	Source string
}

// NewExclusionRule constructs an ExclusionRule and validates its fields.
func NewExclusionRule(name string, kind ExclusionRuleKind, source string) (ExclusionRule, error) {
	r := ExclusionRule{
		Name:   strings.TrimSpace(name),
		Kind:   kind,
		Source: strings.TrimSpace(source),
	}
	if err := r.Validate(); err != nil {
		return ExclusionRule{}, err
	}
	return r, nil
}

// NewExactExclusionRule convenience constructor for an exact rule.
func NewExactExclusionRule(name, source string) (ExclusionRule, error) {
	return NewExclusionRule(name, ExclusionExact, source)
}

// NewSuffixExclusionRule convenience constructor for a suffix rule.
func NewSuffixExclusionRule(name, source string) (ExclusionRule, error) {
	return NewExclusionRule(name, ExclusionSuffix, source)
}

// Validate checks the rule for required fields and supported values.
func (r ExclusionRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	switch r.Kind {
	case ExclusionExact, ExclusionSuffix:
	default:
		return fmt.Errorf("unsupported ExclusionRuleKind: %d", r.Kind)
	}
	return nil
}

// IsSuffix returns true when the rule also covers subdomains.
func (r ExclusionRule) IsSuffix() bool { return r.Kind == ExclusionSuffix }

// ExclusionDecision is the outcome of checking a host against the exclusion set.
type ExclusionDecision struct {
	Excluded    bool
	MatchedRule string // rule name that matched
	Source      string
	Kind        ExclusionRuleKind
}

// NotExcluded returns the zero decision.
func NotExcluded() ExclusionDecision { return ExclusionDecision{} }
