package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"time-value-analyser/quake-ingester/internal/model"
)

type CSVConfig struct {
	HasHeader   bool
	Delimiter   rune
	TimeColumns []string
}

type CSVOption func(*CSVConfig)

func WithHeader(hasHeader bool) CSVOption {
	return func(c *CSVConfig) { c.HasHeader = hasHeader }
}

func WithDelimiter(delimiter rune) CSVOption {
	return func(c *CSVConfig) { c.Delimiter = delimiter }
}

// WithTimeColumns names columns to parse back into instants on read.
func WithTimeColumns(cols ...string) CSVOption {
	return func(c *CSVConfig) { c.TimeColumns = append(c.TimeColumns, cols...) }
}

func csvConfig(options []CSVOption) *CSVConfig {
	c := &CSVConfig{HasHeader: true, Delimiter: ','}
	for _, o := range options {
		o(c)
	}
	return c
}

// ToCSV writes the frame to filename. Missing cells are empty.
func (f *Frame) ToCSV(filename string, options ...CSVOption) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := f.WriteCSV(file, options...); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *Frame) WriteCSV(w io.Writer, options ...CSVOption) error {
	config := csvConfig(options)
	writer := csv.NewWriter(w)
	writer.Comma = config.Delimiter

	if config.HasHeader {
		if err := writer.Write(f.columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	rec := make([]string, len(f.columns))
	for _, row := range f.rows {
		for i, v := range row {
			rec[i] = v.Text()
		}
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadCSV(filename string, options ...CSVOption) (*Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ParseCSV(file, options...)
}

// ParseCSV reads a table, inferring each cell: empty -> missing, then
// integer, float, and instant for the configured time columns, else string.
func ParseCSV(r io.Reader, options ...CSVOption) (*Frame, error) {
	config := csvConfig(options)
	reader := csv.NewReader(r)
	reader.Comma = config.Delimiter

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV file is empty")
	}
	return fromStrings(records, config.HasHeader, config.TimeColumns)
}

func fromStrings(records [][]string, hasHeader bool, timeCols []string) (*Frame, error) {
	var columns []string
	start := 0
	if hasHeader {
		columns = records[0]
		start = 1
	} else {
		columns = make([]string, len(records[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("col_%d", i)
		}
	}
	df, err := New(columns)
	if err != nil {
		return nil, err
	}
	isTime := make([]bool, len(columns))
	for _, c := range timeCols {
		j, err := df.col(c)
		if err != nil {
			return nil, err
		}
		isTime[j] = true
	}
	for i := start; i < len(records); i++ {
		row := make([]model.Value, len(columns))
		for j := range columns {
			if j >= len(records[i]) {
				continue
			}
			if isTime[j] {
				row[j] = parseTimeCell(records[i][j])
			} else {
				row[j] = inferType(records[i][j])
			}
		}
		df.rows = append(df.rows, row)
	}
	return df, nil
}

func inferType(value string) model.Value {
	if strings.TrimSpace(value) == "" {
		return model.MissingValue()
	}
	if i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return model.IntValue(i)
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return model.FloatValue(f)
	}
	return model.StringValue(value)
}

func parseTimeCell(value string) model.Value {
	s := strings.TrimSpace(value)
	if s == "" {
		return model.MissingValue()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return model.TimeValue(t)
		}
	}
	return model.StringValue(value)
}
