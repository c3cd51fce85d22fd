package index

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Slugify derives the stable identifier for a heading from its text:
// Unicode NFKD normalization, case folding, stripping everything outside
// [a-z0-9- ], collapsing whitespace runs to single hyphens, and trimming
// leading/trailing hyphens. The same text always yields the same slug.
func Slugify(text string) string {
	folded := cases.Fold().String(norm.NFKD.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	inSpace := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			if inSpace && b.Len() > 0 {
				b.WriteByte('-')
			}
			inSpace = false
			b.WriteRune(r)
		case r == ' ', r == '\t':
			inSpace = true
		default:
			// stripped
		}
	}

	return strings.Trim(b.String(), "-")
}
