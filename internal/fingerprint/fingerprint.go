// file: internal/fingerprint/fingerprint.go
// version: 1.0.0
// guid: 6c2d4e8f-1a3b-4c5d-9e7f-0a2b4c6d8e1f

package fingerprint

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind is the top-level query class a key belongs to.
type Kind string

const (
	KindSearch Kind = "search"
	KindEnrich Kind = "enrich"
	KindCover  Kind = "cover"
	KindAI     Kind = "ai"
)

// Version is prepended to the storage namespace, not the key itself.
// Bump it whenever the key format changes so stale entries go dark.
const Version = "v1"

// Key derives a deterministic cache key of the form
// {kind}:{subkind}:{k1=v1&k2=v2...} with pairs sorted lexicographically.
// ISBN-like params keep digits (and a trailing X check digit) only; free
// text is NFC-normalized, lowercased, and whitespace-collapsed.
func Key(kind Kind, subkind string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.ToLower(strings.TrimSpace(k))
		var value string
		if name == "isbn" {
			value = NormalizeISBN(params[k])
		} else {
			value = NormalizeText(params[k])
		}
		pairs = append(pairs, name+"="+value)
	}

	return string(kind) + ":" + subkind + ":" + strings.Join(pairs, "&")
}

// EdgeKey is the URL-shaped form of a key used by the edge tier.
func EdgeKey(key string) string {
	return "/cache/" + Version + "/" + url.PathEscape(key)
}

// NormalizeISBN strips everything but digits, keeping a trailing X/x
// check digit valid in ISBN-10.
func NormalizeISBN(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case (r == 'X' || r == 'x') && i == len(raw)-1:
			b.WriteByte('X')
		}
	}
	return b.String()
}

// NormalizeText canonicalizes free-text params: NFC, lowercase, trimmed,
// inner whitespace collapsed to single spaces.
func NormalizeText(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
