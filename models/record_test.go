package models

import "testing"

func TestScoreConfidence(t *testing.T) {
	const high, medium = 7, 4

	tests := []struct {
		name   string
		points int
		want   ConfidenceLevel
	}{
		{"at high threshold", 7, ConfidenceHigh},
		{"above high threshold", 12, ConfidenceHigh},
		{"at medium threshold", 4, ConfidenceMedium},
		{"between thresholds", 6, ConfidenceMedium},
		{"below medium", 3, ConfidenceLow},
		{"zero", 0, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreConfidence(tt.points, high, medium)
			if got != tt.want {
				t.Errorf("ScoreConfidence(%d) = %s, want %s", tt.points, got, tt.want)
			}
		})
	}
}

func TestNeedsVerification(t *testing.T) {
	tests := []struct {
		confidence ConfidenceLevel
		want       bool
	}{
		{ConfidenceHigh, false},
		{ConfidenceMedium, true},
		{ConfidenceLow, true},
	}

	for _, tt := range tests {
		r := &Record{Confidence: tt.confidence}
		if got := r.NeedsVerification(); got != tt.want {
			t.Errorf("NeedsVerification with %s = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestRecordValue(t *testing.T) {
	r := &Record{
		URL:        "https://example.com/stories/acme",
		Fields:     map[string]string{"title": "Acme", "industry": "Retail"},
		Confidence: ConfidenceMedium,
	}

	tests := []struct {
		column string
		want   string
	}{
		{ColumnURL, "https://example.com/stories/acme"},
		{ColumnConfidenceScore, "Medium"},
		{ColumnNeedsVerification, "Yes"},
		{"title", "Acme"},
		{"industry", "Retail"},
		{"missing_field", ""},
	}

	for _, tt := range tests {
		if got := r.Value(tt.column); got != tt.want {
			t.Errorf("Value(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}
}
