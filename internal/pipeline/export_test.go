package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"oelexport/internal"
)

func sampleRecords() []internal.CatalogRecord {
	return []internal.CatalogRecord{
		{
			InternalID: "OEL-001", ArticleNumber: "A-1", Manufacturer: "Müller & Söhne", Description: "Premium <0W-40>",
			Approvals: []string{"MB 229.5", "VW 502.00"}, Category: internal.CategoryPremium,
			NetCost: internal.NumberValue(12.5, "12,50"), SalePrice: internal.MissingValue(),
			Remarks: "MB 229.5; VW 502.00", Status: internal.StatusOK,
		},
		{
			InternalID: "OEL-002", Description: "Generic Oil", Approvals: []string{},
			Category: internal.CategoryStandard, NetCost: internal.NumberValue(0, "0"),
			SalePrice: internal.TextValue("auf Anfrage"), Status: internal.StatusIncomplete,
			MissingFields: "Manufacturer, Cost-Price, Approvals",
		},
	}
}

func TestEncodeCatalog(t *testing.T) {
	blob, err := EncodeCatalog(sampleRecords())
	if err != nil {
		t.Fatal(err)
	}
	out := string(blob)
	for _, want := range []string{
		`"manufacturer": "Müller & Söhne"`,
		`"description": "Premium <0W-40>"`,
		`"net_cost": 12.5`,
		`"sale_price": null`,
		`"approvals": []`,
		`"missing_fields": "Manufacturer, Cost-Price, Approvals"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	var generic []map[string]any
	if err := json.Unmarshal(blob, &generic); err != nil {
		t.Fatal(err)
	}
	wantKeys := []string{
		"approvals", "article_number", "category", "description", "internal_id", "manufacturer",
		"missing_fields", "net_cost", "remarks", "sale_price", "status",
	}
	for _, key := range wantKeys {
		if _, ok := generic[0][key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}
	if len(generic[0]) != len(wantKeys) {
		t.Fatalf("unexpected keys: %v", generic[0])
	}

	empty, err := EncodeCatalog(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(empty)) != "[]" {
		t.Fatalf("empty catalog=%q", empty)
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	blob, err := EncodeCatalog(sampleRecords())
	if err != nil {
		t.Fatal(err)
	}
	var got []internal.CatalogRecord
	if err := json.Unmarshal(blob, &got); err != nil {
		t.Fatal(err)
	}
	if got[0].NetCost.Number != 12.5 || got[1].SalePrice.Text != "auf Anfrage" || !got[0].SalePrice.IsMissing() {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestWriteAnalysisCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", AnalysisFileName)
	if err := WriteAnalysisCSV(sampleRecords(), path); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(blob, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("missing BOM: %q", blob[:8])
	}

	cr := csv.NewReader(bytes.NewReader(blob[3:]))
	cr.Comma = ';'
	records, err := cr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		analysisHeaders,
		{"OEL-001", "A-1", "Müller & Söhne", "Premium <0W-40>", "Premium/Hochleistung", "MB 229.5, VW 502.00",
			"12,50", "", "MB 229.5; VW 502.00", "OK", ""},
		{"OEL-002", "", "", "Generic Oil", "Standard", "", "0", "auf Anfrage", "", "Incomplete",
			"Manufacturer, Cost-Price, Approvals"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteAnalysisXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), AnalysisXLSXName)
	if err := WriteAnalysisXLSX(sampleRecords(), path); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][0] != "OEL-001" || rows[2][9] != "Incomplete" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestWriteAnalysisXLSXCellLimit(t *testing.T) {
	records := sampleRecords()
	records[0].Remarks = strings.Repeat("x", excelize.TotalCellChars+1)
	path := filepath.Join(t.TempDir(), AnalysisXLSXName)
	err := WriteAnalysisXLSX(records, path)
	if err == nil || !strings.Contains(err.Error(), "OEL-001") {
		t.Fatalf("expected oversize remarks error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("workbook should not be written, stat err=%v", statErr)
	}
}

func TestRenderStatistics(t *testing.T) {
	stats := internal.RunStatistics{Total: 2, Incomplete: 1, Categories: []internal.CategoryCount{
		{Category: internal.CategoryPremium, Count: 1},
		{Category: internal.CategoryStandard, Count: 1},
	}}
	now := time.Date(2026, 10, 17, 14, 5, 0, 0, time.Local)
	want := "Statistics - oil catalog export (2026-10-17 14:05)\n" +
		"Total records: 2\n" +
		"Incomplete records: 1\n" +
		"\n" +
		"Distribution by category:\n" +
		"  Premium/Hochleistung: 1\n" +
		"  Standard: 1\n"
	if diff := cmp.Diff(want, RenderStatistics(stats, now)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBackupPath(t *testing.T) {
	got := BackupPath("backups", time.Date(2026, 1, 2, 23, 59, 0, 0, time.Local))
	if got != filepath.Join("backups", "localdb_2026-01-02.json") {
		t.Fatalf("got %s", got)
	}
}
