package parsers

import (
	"strings"
	"unicode"

	"github.com/haukened/risklists/internal/risk/common/utils"
	"github.com/haukened/risklists/internal/risk/domain"
)

// ruleKindFromRaw decides the rule kind from the raw, uncanonicalized input.
// A leading "*." or "." marks a suffix rule; anything else is exact.
func ruleKindFromRaw(raw string) domain.ExclusionRuleKind {
	if strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".") {
		return domain.ExclusionSuffix
	}
	return domain.ExclusionExact
}

// isValidFQDN checks that name is at most 255 characters, has at least two
// labels of 1 to 63 characters each, and starts with a letter or digit.
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
		if strings.ContainsAny(label, " \t*/:@") {
			return false
		}
	}
	runes := []rune(labels[0])
	return isAlphaNumeric(runes[0])
}

// normalizeDomainName trims whitespace, strips a "*." or "." marker and
// returns the canonical form.
func normalizeDomainName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalDNSName(name)
}

func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stripComment removes a '#' comment and a leading BOM.
func stripComment(line string) string {
	line = strings.TrimPrefix(line, "\uFEFF")
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

// newRule builds a rule for a raw token, reporting false for tokens that
// are not host names.
func newRule(raw, source string) (domain.ExclusionRule, bool) {
	kind := ruleKindFromRaw(raw)
	name := normalizeDomainName(raw)
	if !isValidFQDN(name) {
		return domain.ExclusionRule{}, false
	}
	newKind := domain.NewExactExclusionRule
	if kind == domain.ExclusionSuffix {
		newKind = domain.NewSuffixExclusionRule
	}
	rule, err := newKind(name, source)
	if err != nil {
		return domain.ExclusionRule{}, false
	}
	return rule, true
}
