package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// boilerplateRe strips the accessibility suffix some sites append to links.
var boilerplateRe = regexp.MustCompile(`(?i)\(?opens in a new tab\)?`)

// spaceRe collapses whitespace runs (rendered text keeps layout newlines).
var spaceRe = regexp.MustCompile(`\s+`)

// quoteRunes are the straight and curly quote characters trimmed from the
// edges of extracted values.
const quoteRunes = `"'“”‘’«»`

// sectionKeywords are bare section labels that leak through generic
// selectors. A cleaned value equal to one of these is treated as absent.
var sectionKeywords = map[string]struct{}{
	"challenge":    {},
	"solution":     {},
	"headquarters": {},
	"industry":     {},
	"integrations": {},
	"share":        {},
	"results":      {},
	"the":          {},
	"about":        {},
	"at":           {},
	"group":        {},
	"financial":    {},
}

// Clean normalizes an extracted value: whitespace runs collapse to single
// spaces, the boilerplate phrase is stripped, and leading/trailing quotes
// and whitespace are trimmed. Collapsing happens first so a phrase broken
// across layout newlines is still recognized, and stripping repeats to a
// fixpoint so removal that rejoins surrounding text cannot leave a fresh
// occurrence behind. Clean is idempotent.
func Clean(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	for {
		next := boilerplateRe.ReplaceAllString(s, "")
		next = spaceRe.ReplaceAllString(next, " ")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(quoteRunes, r)
	})
}

// Accepted reports whether a cleaned value survives the rule's minimum
// length and the bare-keyword rejection list.
func Accepted(cleaned string, minLength int) bool {
	if cleaned == "" || len(cleaned) < minLength {
		return false
	}
	if _, bare := sectionKeywords[strings.ToLower(cleaned)]; bare {
		return false
	}
	return true
}
