package frame

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"time-value-analyser/quake-ingester/internal/model"
)

const defaultSheet = "Sheet1"

// ToExcel writes the frame to an .xlsx workbook holding one sheet. Numbers
// are stored as numeric cells; instants use the same RFC3339 text as CSV so
// they read back without spreadsheet epoch conversion.
func (f *Frame) ToExcel(filename, sheet string) error {
	if sheet == "" {
		sheet = defaultSheet
	}
	wb := excelize.NewFile()
	defer wb.Close()

	if sheet != defaultSheet {
		if err := wb.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}
	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}
	header := make([]interface{}, len(f.columns))
	for i, c := range f.columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range f.rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = excelCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := wb.SaveAs(filename); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func excelCell(v model.Value) interface{} {
	switch v.Kind() {
	case model.Missing:
		return nil
	case model.Int:
		i, _ := v.Int()
		return i
	case model.Float:
		f, _ := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return v.Text()
		}
		return f
	}
	return v.Text()
}

// ReadExcel loads a sheet written by ToExcel (or any sheet whose first row
// is a header). A column holding any float reads back as floats throughout,
// since a workbook does not distinguish 5 from 5.0.
func ReadExcel(filename, sheet string, options ...CSVOption) (*Frame, error) {
	if sheet == "" {
		sheet = defaultSheet
	}
	wb, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer wb.Close()

	records, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("worksheet %q is empty", sheet)
	}
	config := csvConfig(options)
	df, err := fromStrings(records, true, config.TimeColumns)
	if err != nil {
		return nil, err
	}
	for j := range df.columns {
		if inferKind(df.rows, j) != model.Float {
			continue
		}
		for _, row := range df.rows {
			if i, ok := row[j].Int(); ok {
				row[j] = model.FloatValue(float64(i))
			}
		}
	}
	return df, nil
}
