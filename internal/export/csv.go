// Package export serializes simulation results to CSV, JSON, and HTML.
// All serializers are deterministic and side-effect free.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/me/gosweep/pkg/model"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	// Delimiter defaults to ','. Fields are quoted RFC4180-style only
	// when they contain the delimiter, a quote, or a line break.
	Delimiter rune
}

func (o CSVOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// exportColumns returns the column order for serialization: the
// declared columns when present, otherwise time first plus sorted
// variables.
func exportColumns(result *model.SimulationResults) []string {
	if len(result.Columns) > 0 {
		cols := make([]string, 0, len(result.Columns))
		for _, col := range result.Columns {
			if _, ok := result.Data[col]; ok {
				cols = append(cols, col)
			}
		}
		return cols
	}
	cols := result.Variables()
	if _, ok := result.Data[model.TimeColumn]; ok {
		cols = append([]string{model.TimeColumn}, cols...)
	}
	return cols
}

// WriteCSV streams the result to w row by row, one line per sample,
// without materializing the whole document.
func WriteCSV(w io.Writer, result *model.SimulationResults, opts CSVOptions) error {
	if !result.Success {
		return fmt.Errorf("cannot export failed result: %s", result.Error)
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()

	cols := exportColumns(result)
	if len(cols) == 0 {
		return fmt.Errorf("result has no columns to export")
	}
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	for i := 0; i < result.Len(); i++ {
		for j, col := range cols {
			row[j] = strconv.FormatFloat(result.Data[col][i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToCSV renders the result as one CSV document.
func ToCSV(result *model.SimulationResults, opts CSVOptions) (string, error) {
	var sb strings.Builder
	if err := WriteCSV(&sb, result, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ParseCSV reconstructs a result from CSV produced by ToCSV/WriteCSV.
// The time axis is taken from the reserved time column when present.
func ParseCSV(data string, opts CSVOptions) (*model.SimulationResults, error) {
	cr := csv.NewReader(strings.NewReader(data))
	cr.Comma = opts.delimiter()

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse csv: no header row")
	}

	cols := rows[0]
	result := &model.SimulationResults{
		Success: true,
		Data:    make(map[string][]float64, len(cols)),
		Columns: append([]string(nil), cols...),
	}
	for _, col := range cols {
		result.Data[col] = make([]float64, 0, len(rows)-1)
	}

	for lineNo, row := range rows[1:] {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("parse csv: row %d has %d fields, want %d", lineNo+2, len(row), len(cols))
		}
		for j, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse csv: row %d column %q: %w", lineNo+2, cols[j], err)
			}
			result.Data[cols[j]] = append(result.Data[cols[j]], v)
		}
	}

	if timeSeries, ok := result.Data[model.TimeColumn]; ok {
		result.Index = append([]float64(nil), timeSeries...)
	}
	return result, nil
}

// CSVChunker produces a large result as a sequence of CSV chunks so
// the full document never has to live in memory at once. The first
// chunk carries the header.
type CSVChunker struct {
	result       *model.SimulationResults
	opts         CSVOptions
	rowsPerChunk int
	cols         []string
	next         int
	wroteHeader  bool
}

// NewCSVChunker creates a chunker emitting at most rowsPerChunk sample
// rows per chunk.
func NewCSVChunker(result *model.SimulationResults, opts CSVOptions, rowsPerChunk int) (*CSVChunker, error) {
	if !result.Success {
		return nil, fmt.Errorf("cannot export failed result: %s", result.Error)
	}
	if rowsPerChunk < 1 {
		return nil, fmt.Errorf("rows per chunk must be >= 1, got %d", rowsPerChunk)
	}
	cols := exportColumns(result)
	if len(cols) == 0 {
		return nil, fmt.Errorf("result has no columns to export")
	}
	return &CSVChunker{
		result:       result,
		opts:         opts,
		rowsPerChunk: rowsPerChunk,
		cols:         cols,
	}, nil
}

// Next returns the next chunk. ok is false once the result is exhausted.
func (c *CSVChunker) Next() (chunk string, ok bool, err error) {
	if c.next >= c.result.Len() && c.wroteHeader {
		return "", false, nil
	}

	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	cw.Comma = c.opts.delimiter()

	if !c.wroteHeader {
		if err := cw.Write(c.cols); err != nil {
			return "", false, fmt.Errorf("write header: %w", err)
		}
		c.wroteHeader = true
	}

	end := c.next + c.rowsPerChunk
	if end > c.result.Len() {
		end = c.result.Len()
	}
	row := make([]string, len(c.cols))
	for i := c.next; i < end; i++ {
		for j, col := range c.cols {
			row[j] = strconv.FormatFloat(c.result.Data[col][i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return "", false, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	c.next = end

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", false, err
	}
	return sb.String(), true, nil
}
