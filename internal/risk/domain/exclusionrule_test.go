package domain

import "testing"

func TestParseExclusionRuleKind(t *testing.T) {
	cases := []struct {
		in      string
		want    ExclusionRuleKind
		wantErr bool
	}{
		{"exact", ExclusionExact, false},
		{"ExAcT", ExclusionExact, false},
		{" SUFFIX ", ExclusionSuffix, false},
		{"", 0, true},
		{"wild", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseExclusionRuleKind(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseExclusionRuleKind(%q) expected error, got nil", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseExclusionRuleKind(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseExclusionRuleKind(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExclusionRuleKind_String(t *testing.T) {
	if ExclusionExact.String() != "exact" || ExclusionSuffix.String() != "suffix" {
		t.Fatal("unexpected kind strings")
	}
	if got := ExclusionRuleKind(9).String(); got != "ExclusionRuleKind(9)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestNewExclusionRule(t *testing.T) {
	r, err := NewSuffixExclusionRule(" microsoft.com ", "builtin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "microsoft.com" || !r.IsSuffix() || r.Source != "builtin" {
		t.Fatalf("unexpected rule: %+v", r)
	}

	r, err = NewExactExclusionRule("login.example.com", "env")
	if err != nil || r.IsSuffix() {
		t.Fatalf("unexpected exact rule: %+v err=%v", r, err)
	}

	if _, err := NewExactExclusionRule("", "env"); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewExactExclusionRule("a.com", " "); err == nil {
		t.Error("expected error for empty source")
	}
	if _, err := NewExclusionRule("a.com", ExclusionRuleKind(7), "env"); err == nil {
		t.Error("expected error for unsupported kind")
	}
}

func TestNotExcluded(t *testing.T) {
	if NotExcluded().Excluded {
		t.Fatal("NotExcluded must not be excluded")
	}
}
