package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// CSVReader reads comma, semicolon or tab separated statements.
type CSVReader struct{}

// Format returns the reader's file extension.
func (*CSVReader) Format() string { return "csv" }

// Read parses the CSV into a cell grid. The delimiter is sniffed from the
// first line; rows may have varying field counts.
func (*CSVReader) Read(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")) // UTF-8 BOM

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}
	return records, nil
}

// sniffDelimiter picks the delimiter with the most hits on the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, count := ',', strings.Count(string(line), ",")
	for _, cand := range []rune{';', '\t'} {
		if c := strings.Count(string(line), string(cand)); c > count {
			best, count = cand, c
		}
	}
	return best
}

// XLSXReader reads modern Excel statement exports.
type XLSXReader struct{}

// Format returns the reader's file extension.
func (*XLSXReader) Format() string { return "xlsx" }

// Read returns the cell grid of the first sheet.
func (*XLSXReader) Read(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX statement: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("XLSX statement has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading XLSX sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// XLSReader reads legacy Excel statement exports.
type XLSReader struct{}

// Format returns the reader's file extension.
func (*XLSReader) Format() string { return "xls" }

// Read returns the cell grid of the first sheet.
func (*XLSReader) Read(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening XLS statement: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("XLS statement has no sheets")
	}
	return wb.ReadAllCells(1 << 16), nil
}
