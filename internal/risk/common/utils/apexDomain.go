package utils

import "golang.org/x/net/publicsuffix"

// GetApexDomain returns the registrable domain (eTLD+1) for a host name,
// falling back to the canonical name when the public suffix list has no answer.
func GetApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apexDomain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		apexDomain = name
	}
	return apexDomain
}

// IsPublicSuffix reports whether name is itself a public suffix such as
// "co.uk" or "github.io", under which anyone may register.
func IsPublicSuffix(name string) bool {
	name = CanonicalDNSName(name)
	if name == "" {
		return false
	}
	ps, _ := publicsuffix.PublicSuffix(name)
	return ps == name
}
