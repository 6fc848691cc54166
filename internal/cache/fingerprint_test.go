package cache

import (
	"regexp"
	"testing"
)

var hexKey = regexp.MustCompile(`^[0-9a-f]{64}$`)

func strPtr(s string) *string { return &s }

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint("https://example.com/page", "markdown", nil, false, nil)
	b := Fingerprint("https://example.com/page", "markdown", nil, false, nil)
	if a != b {
		t.Error("identical inputs produced different fingerprints")
	}
	if !hexKey.MatchString(a) {
		t.Errorf("fingerprint %q is not a 64-char hex digest", a)
	}
}

func TestFingerprintVariesWithEachTupleField(t *testing.T) {
	base := Fingerprint("https://example.com", "markdown", nil, false, nil)

	variants := []string{
		Fingerprint("https://example.org", "markdown", nil, false, nil),
		Fingerprint("https://example.com", "json", nil, false, nil),
		Fingerprint("https://example.com", "markdown", strPtr("ollama"), true, nil),
		Fingerprint("https://example.com", "markdown", nil, true, nil),
		Fingerprint("https://example.com", "markdown", nil, false, strPtr("summarize")),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with the base fingerprint", i)
		}
	}
}

func TestFingerprintCanonicalizesURLs(t *testing.T) {
	cases := [][2]string{
		{"https://Example.COM/page", "https://example.com/page"},
		{"https://example.com/page#frag", "https://example.com/page"},
		{"https://example.com:443/page", "https://example.com/page"},
		{"http://example.com:80/page", "http://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com/page?b=2&a=1", "https://example.com/page?a=1&b=2"},
	}
	for _, c := range cases {
		got := Fingerprint(c[0], "text", nil, false, nil)
		want := Fingerprint(c[1], "text", nil, false, nil)
		if got != want {
			t.Errorf("%q and %q should share a fingerprint", c[0], c[1])
		}
	}
}

func TestFingerprintKeepsDistinctQueries(t *testing.T) {
	a := Fingerprint("https://example.com/search?q=go", "text", nil, false, nil)
	b := Fingerprint("https://example.com/search?q=rust", "text", nil, false, nil)
	if a == b {
		t.Error("different queries must not collide")
	}
}
