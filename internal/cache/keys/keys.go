// Package keys derives fetch-cache keys from a backend endpoint and its
// request payload.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Key is "<endpoint>:n=<len>:h=<xxhash64>". payload is the canonical JSON
// body of the request, or nil for parameterless GETs.
func Key(endpoint string, payload []byte) string {
	ep := sanitizeEndpoint(strings.TrimSpace(endpoint))
	sum := xxhash.Sum64(payload)
	return fmt.Sprintf("%s:n=%d:h=%016x", ep, len(payload), sum)
}

// keeps [A-Za-z0-9:_-], folds whitespace to '_' and everything else to '-'
func sanitizeEndpoint(s string) string {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
