// Package snippet normalizes message text into the short single-line form the
// extraction pipeline expects.
package snippet

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxLen is the length, in runes, of snippets built from full bodies. It
// matches what the Gmail API returns.
const MaxLen = 200

// Clean decodes HTML entities, applies NFKC normalization and collapses every
// run of whitespace into a single space. NFKC turns non-breaking spaces and
// full-width digits into their ASCII forms.
func Clean(s string) string {
	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// FromBody builds a snippet from a plain-text message body.
func FromBody(body string) string {
	return Truncate(Clean(body), MaxLen)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
