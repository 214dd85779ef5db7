// Package news implements URL canonicalization, batch dedup/upsert, and
// deterministic ticker/tag extraction for ingested news items.
package news

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams is the fixed allow-list of query parameters stripped during
// canonicalization: UTM campaign params, common click IDs, and the usual
// analytics noise.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "utm_id": true,
	"gclid": true, "fbclid": true, "msclkid": true, "mc_cid": true, "mc_eid": true,
	"ref": true, "ref_src": true, "ref_url": true, "igshid": true,
	"_ga": true, "_gl": true, "spm": true,
}

// Canonicalize reduces a URL string to a stable comparison form: trims
// whitespace, adds a missing scheme, coerces the scheme to https, lowercases
// the host, strips a leading www., removes default ports, strips a trailing
// slash on non-root paths, drops tracking query parameters, sorts the
// remaining ones alphabetically, and clears the fragment. A parse failure
// returns the trimmed input unchanged.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimSpace(raw)
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Host = stripDefaultPort(u.Host)

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			if trackingParams[strings.ToLower(param)] {
				q.Del(param)
			}
		}
		u.RawQuery = q.Encode() // url.Values.Encode sorts keys alphabetically
	}

	u.Fragment = ""
	return u.String()
}

// stripDefaultPort drops a trailing :80 or :443: the scheme is always
// coerced to https by the time this runs, but the source URL may have
// carried either web default port before coercion.
func stripDefaultPort(host string) string {
	hostOnly, port, found := strings.Cut(host, ":")
	if !found {
		return host
	}
	if port == "443" || port == "80" {
		return hostOnly
	}
	return host
}

// StableID derives the storage-facing ID for a canonical URL: the first 16
// hex characters of its SHA-256 digest.
func StableID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:16]
}
