package exclusion

import "github.com/haukened/risklists/internal/risk/domain"

// BuiltinSource attributes the rules of DefaultExclusions.
const BuiltinSource = "builtin"

// DefaultExclusions names the high-volume vendor domains that are never
// pushed to a risk-based destination list. Each entry also covers its
// subdomains. The Policies API rejects most of these as high-volume domains.
var DefaultExclusions = []string{
	"akamai.net",
	"akamaiedge.net",
	"amazon.com",
	"amazonaws.com",
	"apple.com",
	"azure.com",
	"bing.com",
	"cisco.com",
	"cloudflare.com",
	"cloudfront.net",
	"facebook.com",
	"github.com",
	"google.com",
	"googleapis.com",
	"gstatic.com",
	"icloud.com",
	"instagram.com",
	"linkedin.com",
	"live.com",
	"microsoft.com",
	"microsoftonline.com",
	"office.com",
	"office365.com",
	"opendns.com",
	"outlook.com",
	"salesforce.com",
	"sharepoint.com",
	"twitter.com",
	"umbrella.com",
	"windows.net",
	"yahoo.com",
	"youtube.com",
}

// DefaultRules returns DefaultExclusions as suffix rules.
func DefaultRules() []domain.ExclusionRule {
	rules := make([]domain.ExclusionRule, 0, len(DefaultExclusions))
	for _, name := range DefaultExclusions {
		rules = append(rules, domain.ExclusionRule{Name: name, Kind: domain.ExclusionSuffix, Source: BuiltinSource})
	}
	return rules
}
