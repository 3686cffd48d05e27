package extract

import (
	"regexp"
	"strings"
)

// spaceClass is the whitespace set alert templates are written against: the
// ASCII controls plus every Unicode separator and the BOM. Snippets pasted
// from HTML mail routinely carry U+00A0 between words.
const spaceClass = `\t\n\v\f\r\p{Z}\x{FEFF}`

// expandSpace rewrites \s and \S in pattern to cover spaceClass. Inside a
// bracket expression \s is spliced into the enclosing class.
func expandSpace(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))

	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			switch next := pattern[i]; {
			case next == 's' && inClass:
				b.WriteString(spaceClass)
			case next == 's':
				b.WriteString("[" + spaceClass + "]")
			case next == 'S' && !inClass:
				b.WriteString("[^" + spaceClass + "]")
			default:
				b.WriteByte(c)
				b.WriteByte(next)
			}
		case c == '[' && !inClass:
			inClass = true
			b.WriteByte(c)
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				i++
				b.WriteByte('^')
			}
			// A leading ']' is a literal member.
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
				b.WriteByte(']')
			}
		case c == ']' && inClass:
			inClass = false
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(expandSpace(pattern))
}
