package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDestinationEntry(t *testing.T) {
	tests := []struct {
		raw      string
		wantDest string
		wantType DestinationType
	}{
		{"Example.com", "example.com", DestinationDomain},
		{"example.com.", "example.com", DestinationDomain},
		{"www.example.com", "www.example.com", DestinationDomain},
		{"https://app.example.com", "app.example.com", DestinationDomain},
		{"https://app.example.com/", "app.example.com", DestinationDomain},
		{"https://app.example.com/login", "https://app.example.com/login", DestinationURL},
		{"www.example.com/path", "https://www.example.com/path", DestinationURL},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, err := NewDestinationEntry(tt.raw, "c")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDest, e.Destination)
			assert.Equal(t, tt.wantType, e.Type)
			assert.Equal(t, "c", e.Comment)
		})
	}
}

func TestNewDestinationEntry_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://", "http://[::1"} {
		_, err := NewDestinationEntry(raw, "")
		assert.Error(t, err, "raw=%q", raw)
	}
}

func entries(t *testing.T, names ...string) []DestinationEntry {
	t.Helper()
	out := make([]DestinationEntry, 0, len(names))
	for _, n := range names {
		e, err := NewDestinationEntry(n, "")
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func destinations(es []DestinationEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Destination)
	}
	return out
}

func TestMissingEntries_SetDifference(t *testing.T) {
	got := MissingEntries(entries(t, "b.com", "c.com", "d.com"), []string{"a.com", "b.com"})
	assert.Equal(t, []string{"c.com", "d.com"}, destinations(got))
}

func TestMissingEntries_Idempotent(t *testing.T) {
	candidates := entries(t, "b.com", "c.com")
	first := MissingEntries(candidates, nil)
	remote := destinations(first)
	second := MissingEntries(candidates, remote)
	assert.Empty(t, second)
}

func TestMissingEntries_CanonicalComparison(t *testing.T) {
	got := MissingEntries(entries(t, "Example.COM", "new.example.com"), []string{"example.com."})
	assert.Equal(t, []string{"new.example.com"}, destinations(got))
}

func TestMissingEntries_DeduplicatesCandidates(t *testing.T) {
	got := MissingEntries(entries(t, "x.com", "X.com", "y.com", "x.com"), nil)
	assert.Equal(t, []string{"x.com", "y.com"}, destinations(got))
}

func TestMissingEntries_Empty(t *testing.T) {
	assert.Empty(t, MissingEntries(nil, []string{"a.com"}))
	assert.NotNil(t, MissingEntries(nil, nil))
}

func TestMissingEntries_NeverReturnsExisting(t *testing.T) {
	existing := []string{"a.com", "b.com", "c.com"}
	candidates := entries(t, "a.com", "b.com", "c.com", "d.com", "e.com", "a.com")
	for _, e := range MissingEntries(candidates, existing) {
		assert.NotContains(t, existing, e.Destination)
	}
}
