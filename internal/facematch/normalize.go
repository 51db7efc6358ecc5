package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// CanonicalIdentity is the stored form of an identity: NFC-composed with
// surrounding and repeated whitespace collapsed. The ledger keys on the exact
// identity string, so "José" typed as composed or decomposed must agree.
func CanonicalIdentity(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// MatchesQuery reports whether a loose search query matches an identity,
// ignoring case, diacritics and dashes.
func MatchesQuery(identity, query string) bool {
	q := strings.TrimSpace(NormalizePersonName(query))
	if q == "" {
		return true
	}
	return strings.Contains(NormalizePersonName(identity), q)
}
