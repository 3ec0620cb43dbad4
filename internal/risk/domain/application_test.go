package domain

import "testing"

func TestApplicationRecord_Validate(t *testing.T) {
	valid := ApplicationRecord{Name: "Dropbox", Domains: []string{"dropbox.com"}, RiskTier: RiskHigh}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]ApplicationRecord{
		"empty name":   {Name: " ", Domains: []string{"a.com"}, RiskTier: RiskHigh},
		"no domains":   {Name: "x", RiskTier: RiskHigh},
		"empty domain": {Name: "x", Domains: []string{"a.com", ""}, RiskTier: RiskHigh},
		"no tier":      {Name: "x", Domains: []string{"a.com"}},
		"negative id":  {ID: -7, Name: "x", Domains: []string{"a.com"}, RiskTier: RiskHigh},
	}
	for name, rec := range cases {
		if err := rec.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
