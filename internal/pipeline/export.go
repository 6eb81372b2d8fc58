package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"oelexport/internal"
)

const (
	CatalogFileName    = "localdb.json"
	AnalysisFileName   = "analyse.csv"
	AnalysisXLSXName   = "analyse.xlsx"
	StatisticsFileName = "statistik.txt"
)

var analysisHeaders = []string{
	"internal_id", "article_number", "manufacturer", "description", "category", "approvals",
	"net_cost", "sale_price", "remarks", "status", "missing_fields",
}

// EncodeCatalog renders the catalog document. Non-ASCII text is written as
// UTF-8, not escaped.
func EncodeCatalog(records []internal.CatalogRecord) ([]byte, error) {
	if records == nil {
		records = []internal.CatalogRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func BackupPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("localdb_%s.json", now.Format("2006-01-02")))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func FlattenRecord(rec internal.CatalogRecord) internal.AnalysisRow {
	return internal.AnalysisRow{
		InternalID:    rec.InternalID,
		ArticleNumber: rec.ArticleNumber,
		Manufacturer:  rec.Manufacturer,
		Description:   rec.Description,
		Category:      string(rec.Category),
		Approvals:     strings.Join(rec.Approvals, ", "),
		NetCost:       rec.NetCost.String(),
		SalePrice:     rec.SalePrice.String(),
		Remarks:       rec.Remarks,
		Status:        string(rec.Status),
		MissingFields: rec.MissingFields,
	}
}

// WriteAnalysisCSV writes the flattened records as a semicolon separated
// table, UTF-8 with a byte-order mark.
func WriteAnalysisCSV(records []internal.CatalogRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	bom := transform.NewWriter(file, unicode.UTF8BOM.NewEncoder())
	w := csv.NewWriter(bom)
	w.Comma = ';'
	if err := w.Write(analysisHeaders); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(FlattenRecord(rec).Fields()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := bom.Close(); err != nil {
		return err
	}
	return file.Close()
}

func WriteAnalysisXLSX(records []internal.CatalogRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	setRow := func(r int, values []any) error {
		for i, value := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, r)
			if err != nil {
				return err
			}
			if text, ok := value.(string); ok && utf8.RuneCountInString(text) > excelize.TotalCellChars {
				return fmt.Errorf("cell %s: %w", cell, excelize.ErrCellCharsLength)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
		return nil
	}

	header := make([]any, len(analysisHeaders))
	for i, h := range analysisHeaders {
		header[i] = h
	}
	if err := setRow(1, header); err != nil {
		return err
	}

	for i, rec := range records {
		row := FlattenRecord(rec)
		values := []any{
			row.InternalID,
			row.ArticleNumber,
			row.Manufacturer,
			row.Description,
			row.Category,
			row.Approvals,
			cellScalar(rec.NetCost),
			cellScalar(rec.SalePrice),
			row.Remarks,
			row.Status,
			row.MissingFields,
		}
		if err := setRow(i+2, values); err != nil {
			return fmt.Errorf("record %s: %w", rec.InternalID, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func cellScalar(v internal.Value) any {
	switch v.Kind {
	case internal.ValueNumber:
		return v.Number
	case internal.ValueText:
		return v.Text
	default:
		return ""
	}
}

func RenderStatistics(stats internal.RunStatistics, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Statistics - oil catalog export (%s)\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total records: %d\n", stats.Total)
	fmt.Fprintf(&b, "Incomplete records: %d\n\n", stats.Incomplete)
	b.WriteString("Distribution by category:\n")
	for _, cc := range stats.Categories {
		fmt.Fprintf(&b, "  %s: %d\n", cc.Category, cc.Count)
	}
	return b.String()
}

func WriteStatistics(stats internal.RunStatistics, now time.Time, path string) error {
	return writeFile(path, []byte(RenderStatistics(stats, now)))
}
