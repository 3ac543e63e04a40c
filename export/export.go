// Package export serializes assembled records into a one-sheet workbook.
package export

import (
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/use-agent/storyrake/models"
)

// SheetName is the single sheet holding the exported records.
const SheetName = "Stories"

// DefaultFilename is the suggested name for the produced workbook.
const DefaultFilename = "scraped_stories.xlsx"

// Workbook renders the records as an xlsx payload. Columns follow the
// requested order, with confidence_score and needs_verification appended
// when the request omits them; fields not in the column list are dropped.
// Rows are sorted by source URL ascending.
func Workbook(records []*models.Record, outputColumns []string) ([]byte, error) {
	columns := Columns(outputColumns)

	sorted := make([]*models.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, models.NewRunError(models.ErrCodeExportFailed, "failed to name sheet", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, models.NewRunError(models.ErrCodeExportFailed, "failed to write header", err)
	}

	for rowIdx, record := range sorted {
		row := make([]interface{}, len(columns))
		for i, c := range columns {
			row[i] = record.Value(c)
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return nil, models.NewRunError(models.ErrCodeExportFailed, "failed to address row", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, models.NewRunError(models.ErrCodeExportFailed, "failed to write row", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeExportFailed, "failed to serialize workbook", err)
	}
	return buf.Bytes(), nil
}

// Columns returns the effective column order: the requested columns plus
// the two derived verification columns appended when missing.
func Columns(outputColumns []string) []string {
	columns := make([]string, 0, len(outputColumns)+2)
	columns = append(columns, outputColumns...)
	if !contains(columns, models.ColumnConfidenceScore) {
		columns = append(columns, models.ColumnConfidenceScore)
	}
	if !contains(columns, models.ColumnNeedsVerification) {
		columns = append(columns, models.ColumnNeedsVerification)
	}
	return columns
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
