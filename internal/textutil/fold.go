package textutil

import (
	"strings"
	"unicode"

	"github.com/partyhub-games/partyhub/internal/strpool"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s, strips diacritics and collapses surrounding whitespace,
// so that "Épée " and "epee" compare equal.
func Fold(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	buf := strpool.Get()
	defer func() {
		buf.Reset()
		strpool.Put(buf)
	}()

	for _, r := range strings.TrimSpace(folded) {
		buf.WriteRune(unicode.ToLower(r))
	}

	return buf.String()
}

// Equal reports whether two strings match after folding.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
