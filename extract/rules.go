package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rule is one markup extraction rule inside a field's ordered list.
// Evaluation is first-match-wins: the assembler stops at the first rule
// whose method yields an accepted value.
type Rule struct {
	// Selector locates candidate nodes in the rendered document.
	Selector string

	// Method is the extraction method applied to the matched node.
	Method Method

	// Label, when non-empty, narrows the match to the first node whose own
	// cleaned text equals it case-insensitively.
	Label string

	// Weight is added to the record's confidence points on acceptance.
	Weight int

	// MinLength is the minimum accepted length of the cleaned value.
	MinLength int
}

// URLRule derives a field value from the item URL instead of markup.
type URLRule struct {
	Pattern *regexp.Regexp
	Weight  int
}

// Field binds a field name to either an ordered markup rule list or a
// URL-derivation rule. Exactly one of FromURL and Rules is set.
type Field struct {
	Name    string
	FromURL *URLRule
	Rules   []Rule
}

var titleCaser = cases.Title(language.English)

// Derive applies the URL pattern to an item URL. The first capture group
// (or the whole match when the pattern has no groups) is title-cased with
// hyphens turned into spaces.
func (u *URLRule) Derive(itemURL string) (string, bool) {
	m := u.Pattern.FindStringSubmatch(itemURL)
	if m == nil {
		return "", false
	}
	segment := m[0]
	if len(m) > 1 {
		segment = m[1]
	}
	segment = strings.ReplaceAll(segment, "-", " ")
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}
	return titleCaser.String(segment), true
}
