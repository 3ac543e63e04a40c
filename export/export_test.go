package export

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/use-agent/storyrake/models"
)

func sheetRows(t *testing.T, payload []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("read sheet %q: %v", SheetName, err)
	}
	return rows
}

func TestWorkbookColumnOrdering(t *testing.T) {
	records := []*models.Record{
		{
			URL:        "https://example.com/stories/acme",
			Fields:     map[string]string{"title": "Acme", "foo": "unrequested"},
			Confidence: models.ConfidenceHigh,
		},
	}

	payload, err := Workbook(records, []string{"url", "title", "confidence_score"})
	if err != nil {
		t.Fatalf("Workbook returned error: %v", err)
	}

	rows := sheetRows(t, payload)
	wantHeader := []string{"url", "title", "confidence_score", "needs_verification"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}
	wantRow := []string{"https://example.com/stories/acme", "Acme", "High", "No"}
	if !reflect.DeepEqual(rows[1], wantRow) {
		t.Errorf("row = %v, want %v (unrequested field must be omitted)", rows[1], wantRow)
	}
}

func TestWorkbookSortsByURL(t *testing.T) {
	records := []*models.Record{
		{URL: "https://example.com/stories/zeta", Confidence: models.ConfidenceLow},
		{URL: "https://example.com/stories/acme", Confidence: models.ConfidenceLow},
		{URL: "https://example.com/stories/mid", Confidence: models.ConfidenceLow},
	}

	payload, err := Workbook(records, []string{"url"})
	if err != nil {
		t.Fatalf("Workbook returned error: %v", err)
	}

	rows := sheetRows(t, payload)
	var urls []string
	for _, row := range rows[1:] {
		urls = append(urls, row[0])
	}
	want := []string{
		"https://example.com/stories/acme",
		"https://example.com/stories/mid",
		"https://example.com/stories/zeta",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("row order = %v, want %v", urls, want)
	}
}

func TestColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			"derived columns appended",
			[]string{"url", "title"},
			[]string{"url", "title", "confidence_score", "needs_verification"},
		},
		{
			"already present not duplicated",
			[]string{"url", "confidence_score", "needs_verification"},
			[]string{"url", "confidence_score", "needs_verification"},
		},
		{
			"confidence requested mid-list keeps position",
			[]string{"confidence_score", "url"},
			[]string{"confidence_score", "url", "needs_verification"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Columns(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Columns(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
