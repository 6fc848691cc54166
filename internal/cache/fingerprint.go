package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint computes the cache key for a scrape request: a hex
// digest of the canonical (url, output_format, transform_provider,
// use_transform, custom_instructions) tuple.
func Fingerprint(rawURL, outputFormat string, transformProvider *string, useTransform bool, customInstructions *string) string {
	canonical := canonicalizeURL(rawURL)

	provider := ""
	if transformProvider != nil {
		provider = *transformProvider
	}
	instructions := ""
	if customInstructions != nil {
		instructions = *customInstructions
	}

	tuple := fmt.Sprintf("%s|%s|%s|%v|%s", canonical, outputFormat, provider, useTransform, instructions)
	h := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(h[:])
}

// canonicalizeURL normalizes a URL the same way the fingerprint
// expects: lowercased scheme/host, sorted query params, no fragment,
// no trailing slash, no default port.
func canonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
