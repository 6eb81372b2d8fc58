package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"oelexport/internal"
	"oelexport/internal/config"
	"oelexport/internal/storage"
)

func TestRunAssignsSequentialIDs(t *testing.T) {
	rows := make([]internal.SourceRow, 12)
	records, stats := Run(rows, NewTransformer(DefaultColumns()))
	if len(records) != 12 || stats.Total != 12 {
		t.Fatalf("len=%d total=%d", len(records), stats.Total)
	}
	for i, rec := range records {
		if want := fmt.Sprintf("OEL-%03d", i+1); rec.InternalID != want {
			t.Fatalf("record %d id=%s want %s", i, rec.InternalID, want)
		}
	}
	if stats.Incomplete != 12 {
		t.Fatalf("incomplete=%d", stats.Incomplete)
	}
}

func TestRunEmptyTable(t *testing.T) {
	records, stats := Run(nil, NewTransformer(DefaultColumns()))
	if len(records) != 0 || stats.Total != 0 || stats.Incomplete != 0 || len(stats.Categories) != 0 {
		t.Fatalf("unexpected: %+v %+v", records, stats)
	}
}

func TestRunStatisticsConsistency(t *testing.T) {
	descriptions := []string{"Longlife III", "Standard 15W-40", "Premium", "Spezial", "Hydrauliköl", "0W-40"}
	rows := make([]internal.SourceRow, 0, len(descriptions))
	for i, d := range descriptions {
		r := row("Hersteller", "X", "Bezeichnung", d, "Bemerkungen", "ACEA C3", "nettopreislieferant", i)
		rows = append(rows, r)
	}
	records, stats := Run(rows, NewTransformer(DefaultColumns()))

	sum := 0
	for _, cc := range stats.Categories {
		sum += cc.Count
	}
	if sum != stats.Total {
		t.Fatalf("histogram sum=%d total=%d", sum, stats.Total)
	}
	notOK := 0
	for _, rec := range records {
		if rec.Status != internal.StatusOK {
			notOK++
		}
	}
	if notOK != stats.Incomplete || notOK != 1 {
		t.Fatalf("incomplete=%d counted=%d", stats.Incomplete, notOK)
	}

	want := []internal.CategoryCount{
		{Category: internal.CategoryLonglife, Count: 2},
		{Category: internal.CategoryStandard, Count: 2},
		{Category: internal.CategoryPremium, Count: 2},
	}
	if diff := cmp.Diff(want, stats.Categories); diff != "" {
		t.Fatalf("histogram (-want +got):\n%s", diff)
	}
}

func writeScenarioCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "Artikel.csv")
	blob := "HArtNr;Hersteller;Bezeichnung;Bemerkungen;nettopreislieferant;vk1\n" +
		"A-1;Castrol;Premium 0W-40;\"MB 229.5; VW 502.00\";12.5;19.9\n" +
		"A-2;;Generic Oil;;0;\n"
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, cfg config.Config, db *storage.DB) (*ExportService, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)
	svc := NewExportService(db, cfg, logger)
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 9, 15, 0, 0, time.Local) }
	return svc, &logs
}

func TestExportScenario(t *testing.T) {
	tmp := t.TempDir()
	input := writeScenarioCSV(t, tmp)
	db, err := storage.Open(filepath.Join(tmp, "data", "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := config.Config{InputCSVSeparator: ";", ArchiveRuns: true, MetricsFile: filepath.Join(tmp, "metrics", "oel.prom")}
	svc, logs := newTestService(t, cfg, db)
	outDir := filepath.Join(tmp, "Bearbeitet")

	res, err := svc.Export(ExportOptions{InputPath: input, OutputDir: outDir, WriteXLSX: true})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Records) != 2 {
		t.Fatalf("records=%d", len(res.Records))
	}
	first, second := res.Records[0], res.Records[1]
	if first.Status != internal.StatusOK || first.Category != internal.CategoryPremium {
		t.Fatalf("first=%+v", first)
	}
	if diff := cmp.Diff([]string{"MB 229.5", "VW 502.00"}, first.Approvals); diff != "" {
		t.Fatalf("approvals (-want +got):\n%s", diff)
	}
	if second.Status != internal.StatusIncomplete || second.MissingFields != "Manufacturer, Cost-Price, Approvals" || second.Category != internal.CategoryStandard {
		t.Fatalf("second=%+v", second)
	}
	if res.Stats.Total != 2 || res.Stats.Incomplete != 1 ||
		res.Stats.CategoryCount(internal.CategoryPremium) != 1 || res.Stats.CategoryCount(internal.CategoryStandard) != 1 {
		t.Fatalf("stats=%+v", res.Stats)
	}

	for _, p := range []string{res.Outputs.Catalog, res.Outputs.Backup, res.Outputs.Analysis, res.Outputs.AnalysisXLSX, res.Outputs.Statistics, cfg.MetricsFile} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("output missing: %v", err)
		}
	}
	if res.Outputs.Backup != filepath.Join(outDir, "backups", "localdb_2026-10-17.json") {
		t.Fatalf("backup=%s", res.Outputs.Backup)
	}

	report, _ := os.ReadFile(res.Outputs.Statistics)
	for _, want := range []string{"Total records: 2", "Incomplete records: 1", "  Premium/Hochleistung: 1", "  Standard: 1"} {
		if !strings.Contains(string(report), want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}

	runs, err := db.ListRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != res.RunID || runs[0].Stats.Total != 2 {
		t.Fatalf("runs=%+v", runs)
	}

	if !strings.Contains(logs.String(), "export finished") {
		t.Fatalf("logs=%s", logs.String())
	}
}

func TestExportIsRepeatableSameDay(t *testing.T) {
	tmp := t.TempDir()
	input := writeScenarioCSV(t, tmp)
	svc, _ := newTestService(t, config.Config{InputCSVSeparator: ";"}, nil)
	opts := ExportOptions{InputPath: input, OutputDir: filepath.Join(tmp, "out")}

	first, err := svc.Export(opts)
	if err != nil {
		t.Fatal(err)
	}
	catalog1, _ := os.ReadFile(first.Outputs.Catalog)
	backup1, _ := os.ReadFile(first.Outputs.Backup)

	second, err := svc.Export(opts)
	if err != nil {
		t.Fatal(err)
	}
	catalog2, _ := os.ReadFile(second.Outputs.Catalog)
	backup2, _ := os.ReadFile(second.Outputs.Backup)

	if first.Outputs.Backup != second.Outputs.Backup {
		t.Fatalf("backup paths differ: %s vs %s", first.Outputs.Backup, second.Outputs.Backup)
	}
	if !bytes.Equal(catalog1, catalog2) || !bytes.Equal(backup1, backup2) || !bytes.Equal(catalog1, backup1) {
		t.Fatal("catalog outputs are not byte-identical")
	}
}

func TestExportUnreadableTableWritesNothing(t *testing.T) {
	tmp := t.TempDir()
	svc, logs := newTestService(t, config.Config{}, nil)
	outDir := filepath.Join(tmp, "out")

	_, err := svc.Export(ExportOptions{InputPath: filepath.Join(tmp, "missing.xlsx"), OutputDir: outDir})
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Fatalf("output dir should not exist, stat err=%v", statErr)
	}
	if !strings.Contains(logs.String(), "failed to read table") {
		t.Fatalf("failure not logged: %s", logs.String())
	}
}

func TestExportEmptyTable(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "Artikel.csv")
	if err := os.WriteFile(input, []byte("HArtNr;Hersteller\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc, _ := newTestService(t, config.Config{InputCSVSeparator: ";"}, nil)
	res, err := svc.Export(ExportOptions{InputPath: input, OutputDir: filepath.Join(tmp, "out")})
	if err != nil {
		t.Fatal(err)
	}
	report, _ := os.ReadFile(res.Outputs.Statistics)
	if !strings.Contains(string(report), "Total records: 0") || !strings.Contains(string(report), "Incomplete records: 0") {
		t.Fatalf("report=%s", report)
	}
	catalog, _ := os.ReadFile(res.Outputs.Catalog)
	if strings.TrimSpace(string(catalog)) != "[]" {
		t.Fatalf("catalog=%s", catalog)
	}
}
