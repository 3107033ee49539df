package paste

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invisible matches format characters that spreadsheets and web pages leave
// in copied text: zero-width space/joiners, bidi marks, BOM, soft hyphen.
func invisible(r rune) bool {
	return unicode.Is(unicode.Cf, r)
}

func nbspToSpace(r rune) rune {
	if r == '\u00a0' || r == '\u202f' {
		return ' '
	}
	return r
}

// Clean strips invisible characters, maps non-breaking spaces to spaces and
// NFC-normalizes s. stripped is true only when characters were removed or
// replaced, not when normalization alone changed the bytes.
func Clean(s string) (cleaned string, stripped bool) {
	if strings.IndexFunc(s, func(r rune) bool { return invisible(r) || nbspToSpace(r) != r }) >= 0 {
		stripped = true
	}

	t := transform.Chain(
		runes.Remove(runes.Predicate(invisible)),
		runes.Map(nbspToSpace),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s, false
	}
	return out, stripped
}
