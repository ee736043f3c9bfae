// Package slug validates page identifiers and checks whether they are free.
package slug

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Suffix is appended to a slug when it is displayed as a page address.
const Suffix = ".yes"

var wellFormed = regexp.MustCompile(`^[a-z0-9\-_()!+?:%]+$`)

// Normalize trims surrounding whitespace and lowercases raw user input.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsWellFormed reports whether candidate, once lowercased, is a non-empty run of
// a-z, 0-9 and the characters - _ ( ) ! + ? : %. Non-ASCII input is rejected
// before lowercasing, so runes such as U+212A KELVIN SIGN that fold to ASCII
// letters do not slip through.
func IsWellFormed(candidate string) bool {
	if !isASCII(candidate) {
		return false
	}
	return wellFormed.MatchString(strings.ToLower(candidate))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Address returns the display form of a slug, e.g. "demo.yes".
func Address(slug string) string {
	return slug + Suffix
}

// ParseAddress recognises search-box input of the form "<slug>.yes" and returns
// the normalised slug. Anything else, including addresses with non-ASCII or
// otherwise malformed slugs, is left for full-text search.
func ParseAddress(query string) (string, bool) {
	q := strings.TrimSpace(query)
	if len(q) <= len(Suffix) || !strings.EqualFold(q[len(q)-len(Suffix):], Suffix) {
		return "", false
	}
	before := q[:len(q)-len(Suffix)]
	if !IsWellFormed(before) {
		return "", false
	}
	return strings.ToLower(before), true
}
