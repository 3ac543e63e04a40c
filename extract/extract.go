package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// styledContainerSel matches the rich-text wrapper the target sites put
// around section bodies; the two "after heading/label" methods read from it.
const styledContainerSel = ".rich-text"

// sectionHeadingRe matches the section headings that delimit the narrative
// blocks on a story page.
var sectionHeadingRe = regexp.MustCompile(`(?i)(challenge|solution|results)`)

// leadInRe matches fragments like "Challenge:" or "Results," that introduce
// a section rather than carrying content.
var leadInRe = regexp.MustCompile(`^[\p{L}\d][\p{L}\d '’-]*[:,;]$`)

// Fixed floors for the two paragraph-hunting methods. These are method
// properties, independent of the rule's own MinLength.
const (
	firstParagraphFloor = 50
	nextParagraphFloor  = 80
)

// FindRuleNode returns the first node the rule selects. When the rule
// carries a label, the match is narrowed to the first node whose own text
// equals the label case-insensitively, ignoring surrounding whitespace.
func FindRuleNode(doc *goquery.Document, rule Rule) *goquery.Selection {
	matches := doc.Find(rule.Selector)
	if rule.Label == "" {
		return matches.First()
	}
	var found *goquery.Selection
	matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.Text()), rule.Label) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return matches.Slice(0, 0)
	}
	return found
}

// Apply runs the rule's extraction method against the matched node and
// returns the cleaned value, or false when the rule yields nothing
// acceptable. sel must be non-empty.
func Apply(rule Rule, sel *goquery.Selection, doc *goquery.Document) (string, bool) {
	var candidate string

	switch rule.Method {
	case MethodText:
		candidate = sel.Text()

	case MethodFirstParagraphBeforeHeading:
		p := sel.Find("p").First()
		if p.Length() == 0 || !precedesFirstSectionHeading(p, doc) {
			return "", false
		}
		v := Clean(p.Text())
		if len(v) <= firstParagraphFloor {
			return "", false
		}
		candidate = v

	case MethodNextParagraphAfterTitle:
		p := sel.NextAllFiltered("p").First()
		if p.Length() == 0 {
			p = sel.Next().Find("p").First()
		}
		if p.Length() == 0 || !precedesFirstSectionHeading(p, doc) {
			return "", false
		}
		v := Clean(p.Text())
		if len(v) <= nextParagraphFloor || leadInRe.MatchString(v) {
			return "", false
		}
		candidate = v

	case MethodTextAfterLabeledHeading:
		next := sel.NextAllFiltered(styledContainerSel).First()
		if next.Length() == 0 {
			return "", false
		}
		candidate = next.Text()

	case MethodTextAfterLabelSeparateParagraph:
		par := sel.Closest("p")
		if par.Length() == 0 || Clean(par.Text()) != Clean(sel.Text()) {
			return "", false
		}
		next := par.NextAllFiltered("p").First()
		if next.Length() == 0 {
			return "", false
		}
		candidate = next.Text()

	case MethodTextAfterLabelSameParagraph:
		par := sel.Closest("p")
		if par.Length() == 0 {
			return "", false
		}
		// Label-then-value in one paragraph: drop the label text once.
		candidate = strings.Replace(par.Text(), sel.Text(), "", 1)

	case MethodTextAfterLabelInStyledContainer:
		if sel.Closest(styledContainerSel).Length() == 0 {
			return "", false
		}
		next := sel.NextAllFiltered(styledContainerSel).First()
		if next.Length() == 0 {
			return "", false
		}
		candidate = next.Text()

	default:
		return "", false
	}

	v := Clean(candidate)
	if !Accepted(v, rule.MinLength) {
		return "", false
	}
	return v, true
}

// precedesFirstSectionHeading reports whether the selection's node comes
// before the document's first section heading. Documents without a section
// heading impose no constraint.
func precedesFirstSectionHeading(s *goquery.Selection, doc *goquery.Document) bool {
	var heading *html.Node
	doc.Find("h1,h2,h3,h4,h5,h6,strong,b,em").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if sectionHeadingRe.MatchString(Clean(h.Text())) {
			heading = h.Nodes[0]
			return false
		}
		return true
	})
	if heading == nil {
		return true
	}
	n := s.Nodes[0]
	if n == heading {
		return false
	}
	return nodeBefore(n, heading)
}

// nodeBefore reports whether a precedes b in document order. Both nodes
// must belong to the same tree.
func nodeBefore(a, b *html.Node) bool {
	root := a
	for root.Parent != nil {
		root = root.Parent
	}
	var first *html.Node
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n == a || n == b {
			first = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return first == a
}
