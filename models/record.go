package models

// ConfidenceLevel classifies how trustworthy an assembled record is.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// Column names the exporter appends when the operator omits them.
const (
	ColumnURL               = "url"
	ColumnConfidenceScore   = "confidence_score"
	ColumnNeedsVerification = "needs_verification"
)

// ScoreConfidence maps accumulated confidence points to a level using the two
// configured cutoffs. It is a pure function: points >= high gives High,
// points >= medium gives Medium, anything below gives Low.
func ScoreConfidence(points, high, medium int) ConfidenceLevel {
	switch {
	case points >= high:
		return ConfidenceHigh
	case points >= medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Record is one extracted item: a field-name to value mapping plus the source
// URL and the derived confidence fields. A Record is immutable once returned
// by the assembler; only the exporter reorders its columns.
type Record struct {
	URL        string
	Fields     map[string]string
	Points     int
	Confidence ConfidenceLevel
}

// NeedsVerification reports whether a human should review this record.
// Everything below High confidence is flagged.
func (r *Record) NeedsVerification() bool {
	return r.Confidence != ConfidenceHigh
}

// Value returns the record's value for a column name, resolving the two
// derived columns and the source URL alongside extracted fields. Absent
// fields yield an empty string.
func (r *Record) Value(column string) string {
	switch column {
	case ColumnURL:
		return r.URL
	case ColumnConfidenceScore:
		return string(r.Confidence)
	case ColumnNeedsVerification:
		if r.NeedsVerification() {
			return "Yes"
		}
		return "No"
	default:
		return r.Fields[column]
	}
}
