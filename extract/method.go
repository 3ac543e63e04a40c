// Package extract implements the per-field extraction methods applied to
// rendered story pages. Every method is a pure function over a parsed
// document: it either returns a cleaned string or reports no match.
package extract

import "fmt"

// Method identifies one extraction method from the closed registry.
// Unknown method names are rejected when the configuration is validated,
// never silently skipped at scrape time.
type Method int

const (
	// MethodText returns the matched node's own visible text.
	MethodText Method = iota

	// MethodFirstParagraphBeforeHeading returns the node's first paragraph
	// descendant, provided it precedes the first section heading.
	MethodFirstParagraphBeforeHeading

	// MethodNextParagraphAfterTitle returns the paragraph following the
	// node, subject to the section-heading constraint and a lead-in check.
	MethodNextParagraphAfterTitle

	// MethodTextAfterLabeledHeading returns the text of the styled
	// container following a heading node.
	MethodTextAfterLabeledHeading

	// MethodTextAfterLabelSeparateParagraph handles the label-paragraph /
	// value-paragraph pattern.
	MethodTextAfterLabelSeparateParagraph

	// MethodTextAfterLabelSameParagraph handles the label-then-value-in-one-
	// paragraph pattern.
	MethodTextAfterLabelSameParagraph

	// MethodTextAfterLabelInStyledContainer is MethodTextAfterLabeledHeading
	// restricted to labels sitting inside a styled container.
	MethodTextAfterLabelInStyledContainer
)

var methodNames = map[string]Method{
	"text":                                 MethodText,
	"first_paragraph_before_heading":       MethodFirstParagraphBeforeHeading,
	"next_paragraph_after_title":           MethodNextParagraphAfterTitle,
	"text_after_labeled_heading":           MethodTextAfterLabeledHeading,
	"text_after_label_separate_paragraph":  MethodTextAfterLabelSeparateParagraph,
	"text_after_label_same_paragraph":      MethodTextAfterLabelSameParagraph,
	"text_after_label_in_styled_container": MethodTextAfterLabelInStyledContainer,
}

// ParseMethod resolves a configured method name.
func ParseMethod(name string) (Method, error) {
	m, ok := methodNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown extraction method %q", name)
	}
	return m, nil
}

func (m Method) String() string {
	for name, v := range methodNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("method(%d)", int(m))
}
