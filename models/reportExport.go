package models

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const ReportSheetName = "Reports"

// WriteReportsXLSX writes one header row (incident + every column) and one row per report.
func WriteReportsXLSX(w io.Writer, reports []*Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReportSheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(ReportSheetName)
	if err != nil {
		return err
	}

	columns := append([]string{ColumnIncident}, WorkOrderColumns...)

	// Add headers
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	// Add data
	for i, r := range reports {
		wo := WorkOrder(*r)
		values := make([]interface{}, len(columns))
		for j, c := range columns {
			values[j] = wo.FieldValue(c)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}
