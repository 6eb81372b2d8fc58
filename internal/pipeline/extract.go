package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"oelexport/internal"
	"oelexport/internal/util"
)

const (
	InputXLSX = "xlsx"
	InputCSV  = "csv"
	InputHTML = "html"
)

type ReadOptions struct {
	Type         string
	Sheet        string
	CSVSeparator rune
	CSVEncoding  string
}

// ReadError means the source table could not be obtained at all.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read table %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ReadTable loads every data row of the table at path. The first row is the
// header. Any failure is returned as a *ReadError.
func ReadTable(path string, opts ReadOptions) ([]internal.SourceRow, error) {
	inputType := opts.Type
	if inputType == "" {
		inputType = DetectInputType(path)
	}

	var (
		rows []internal.SourceRow
		err  error
	)
	switch inputType {
	case InputXLSX:
		rows, err = ReadXLSX(path, opts.Sheet)
	case InputCSV:
		rows, err = readCSVFile(path, opts)
	case InputHTML:
		rows, err = readHTMLFile(path)
	default:
		err = fmt.Errorf("unsupported input type %q", inputType)
	}
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &ReadError{Path: path, Err: err}
	}
	return rows, nil
}

func DetectInputType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return InputXLSX
	case ".csv", ".txt":
		return InputCSV
	case ".html", ".htm":
		return InputHTML
	default:
		return ""
	}
}

func ReadXLSX(path, sheet string) ([]internal.SourceRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []internal.SourceRow{}, nil
	}

	header := rows[0]
	out := make([]internal.SourceRow, 0, len(rows)-1)
	for r := 1; r < len(rows); r++ {
		values := make([]internal.Value, len(header))
		for c := range header {
			if c >= len(rows[r]) {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheet, cellName)
			if err != nil {
				return nil, err
			}
			values[c] = xlsxValue(rows[r][c], cellType)
		}
		if row, ok := buildRow(header, values); ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func xlsxValue(raw string, cellType excelize.CellType) internal.Value {
	if raw == "" {
		return internal.MissingValue()
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return internal.TextValue(raw)
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return internal.NumberValue(n, strings.TrimSpace(raw))
	}
	return internal.TextValue(raw)
}

func readCSVFile(path string, opts ReadOptions) ([]internal.SourceRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file, opts)
}

// ReadCSV reads a delimited table. A UTF-8 byte-order mark is dropped;
// CSVEncoding "windows-1252" decodes legacy exports.
func ReadCSV(r io.Reader, opts ReadOptions) ([]internal.SourceRow, error) {
	var decoded io.Reader
	switch strings.ToLower(opts.CSVEncoding) {
	case "windows-1252", "cp1252", "latin1", "iso-8859-1":
		decoded = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		decoded = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.CSVSeparator != 0 {
		cr.Comma = opts.CSVSeparator
	} else {
		cr.Comma = ';'
	}

	header, err := cr.Read()
	if err == io.EOF {
		return []internal.SourceRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	out := []internal.SourceRow{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		values := make([]internal.Value, len(header))
		for c := range header {
			if c < len(rec) {
				values[c] = textCellValue(rec[c])
			}
		}
		if row, ok := buildRow(header, values); ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func readHTMLFile(path string) ([]internal.SourceRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadHTMLTable(file)
}

// ReadHTMLTable reads the first table with a header row from an HTML export.
// Line breaks inside cells are kept as newlines.
func ReadHTMLTable(r io.Reader) ([]internal.SourceRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		return t.Find("tr").Length() > 0
	}).First()
	if table.Length() == 0 {
		return nil, errors.New("no table found")
	}

	rows := table.Find("tr")
	header := []string{}
	rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		header = append(header, util.NormalizeSpaces(cell.Text()))
	})

	out := []internal.SourceRow{}
	rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		values := make([]internal.Value, len(header))
		tr.Find("th,td").Each(func(c int, cell *goquery.Selection) {
			if c >= len(header) {
				return
			}
			cell.Find("br").ReplaceWithHtml("\n")
			values[c] = textCellValue(cell.Text())
		})
		if row, ok := buildRow(header, values); ok {
			out = append(out, row)
		}
	})
	return out, nil
}

func textCellValue(raw string) internal.Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return internal.MissingValue()
	}
	if n, ok := util.ParseNumber(trimmed); ok {
		return internal.NumberValue(n, trimmed)
	}
	return internal.TextValue(raw)
}

// buildRow pairs header names with values. Rows without any value are
// reported as not ok.
func buildRow(header []string, values []internal.Value) (internal.SourceRow, bool) {
	row := make(internal.SourceRow, 0, len(header))
	empty := true
	for i, name := range header {
		v := internal.MissingValue()
		if i < len(values) {
			v = values[i]
		}
		if !v.IsMissing() {
			empty = false
		}
		row = append(row, internal.Cell{Column: name, Value: v})
	}
	return row, !empty
}
