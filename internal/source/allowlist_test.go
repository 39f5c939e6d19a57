package source

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainAllowlist(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		al := newDomainAllowlist([]string{"Example.org"})
		if !al.Allows("example.org") {
			t.Fatalf("expected example.org to be allowed")
		}
		if al.Allows("sub.example.org") {
			t.Fatalf("did not expect subdomains to match exact entry")
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		al := newDomainAllowlist([]string{"*.cdn.example.com", ".img.example.net"})
		cases := []struct {
			host    string
			allowed bool
		}{
			{"a.cdn.example.com", true},
			{"b.a.cdn.example.com", true},
			{"cdn.example.com", true},
			{"x.img.example.net", true},
			{"example.com", false},
			{"evilcdn.example.com", false},
		}
		for _, tc := range cases {
			if got := al.Allows(tc.host); got != tc.allowed {
				t.Fatalf("host %q allowed=%v, want %v", tc.host, got, tc.allowed)
			}
		}
	})

	t.Run("empty allows nothing", func(t *testing.T) {
		al := newDomainAllowlist([]string{"", "  "})
		if al.Allows("example.org") {
			t.Fatalf("empty allow-list should not allow hosts")
		}
		if al.Allows("") {
			t.Fatalf("blank host should never be allowed")
		}
	})

	t.Run("globs", func(t *testing.T) {
		al := newDomainAllowlist([]string{"example.org", "*.cdn.example.org", "*.cdn.example.org"})
		assert.ElementsMatch(t, []string{
			"example.org", "example.org:*",
			"cdn.example.org", "cdn.example.org:*",
			"*.cdn.example.org", "*.cdn.example.org:*",
		}, al.globs())
	})
}

func TestVisitSetCanonicalizesURLs(t *testing.T) {
	seen := visitSet{}
	assert.True(t, seen.add(mustParse(t, "https://example.org/first")))
	assert.False(t, seen.add(mustParse(t, "HTTPS://Example.ORG:443/first#top")))
	assert.True(t, seen.add(mustParse(t, "https://example.org/second")))
	assert.True(t, seen.add(mustParse(t, "https://example.org:8443/first")))
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTP://Example.COM:80/a#frag", "http://example.com/a"},
		{"https://example.com:443", "https://example.com/"},
		{"https://example.com/list?b=2&a=1", "https://example.com/list?a=1&b=2"},
		{"https://example.com:8443/x", "https://example.com:8443/x"},
		{"http://[::1]:80/v6", "http://[::1]/v6"},
		{"http://[::1]:8080/v6", "http://[::1]:8080/v6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalKey(mustParse(t, tt.in)), "input %q", tt.in)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
