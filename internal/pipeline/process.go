package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"oelexport/internal"
	"oelexport/internal/config"
	"oelexport/internal/metrics"
	"oelexport/internal/storage"
)

// Run transforms every row in input order and derives the run statistics.
func Run(rows []internal.SourceRow, t Transformer) ([]internal.CatalogRecord, internal.RunStatistics) {
	records := make([]internal.CatalogRecord, 0, len(rows))
	incomplete := 0
	for i, row := range rows {
		rec := t.Transform(row, i+1)
		if rec.Status != internal.StatusOK {
			incomplete++
		}
		records = append(records, rec)
	}

	stats := internal.RunStatistics{
		Total:      len(records),
		Incomplete: incomplete,
		Categories: CategoryHistogram(records),
	}
	return records, stats
}

// CategoryHistogram counts records per category in first-seen order.
func CategoryHistogram(records []internal.CatalogRecord) []internal.CategoryCount {
	out := []internal.CategoryCount{}
	index := map[internal.Category]int{}
	for _, rec := range records {
		i, ok := index[rec.Category]
		if !ok {
			index[rec.Category] = len(out)
			out = append(out, internal.CategoryCount{Category: rec.Category, Count: 1})
			continue
		}
		out[i].Count++
	}
	return out
}

type ExportService struct {
	db  *storage.DB
	cfg config.Config
	log *logrus.Logger
	now func() time.Time
}

// NewExportService wires the export run. db may be nil to skip archiving.
func NewExportService(db *storage.DB, cfg config.Config, log *logrus.Logger) *ExportService {
	return &ExportService{db: db, cfg: cfg, log: log, now: time.Now}
}

type ExportOptions struct {
	InputPath string
	InputType string
	OutputDir string
	BackupDir string
	WriteXLSX bool
}

type ExportOutputs struct {
	Catalog      string
	Backup       string
	Analysis     string
	AnalysisXLSX string
	Statistics   string
}

type ExportResult struct {
	RunID   string
	Records []internal.CatalogRecord
	Stats   internal.RunStatistics
	Outputs ExportOutputs
}

// OptionsFromConfig fills export options from the loaded configuration.
func OptionsFromConfig(cfg config.Config) ExportOptions {
	return ExportOptions{
		InputPath: cfg.InputPath,
		InputType: cfg.InputType,
		OutputDir: cfg.OutputDir,
		BackupDir: cfg.BackupDir,
	}
}

// Export reads the source table, transforms it and writes, in this order,
// the catalog document, its dated backup, the analysis table, the statistics
// report and, when enabled, the run archive and metrics file. Nothing is
// written if the table cannot be read. The first failing writer stops the run.
func (s *ExportService) Export(opts ExportOptions) (ExportResult, error) {
	start := s.now()
	runID := uuid.NewString()
	log := s.log.WithField("run", runID)

	cols, err := LoadColumnMap(s.cfg.ColumnMapPath)
	if err != nil {
		log.WithError(err).Error("column map unusable")
		return ExportResult{}, err
	}

	log.Infof("reading table: %s", opts.InputPath)
	rows, err := ReadTable(opts.InputPath, ReadOptions{
		Type:         opts.InputType,
		Sheet:        s.cfg.InputSheet,
		CSVSeparator: s.cfg.CSVSeparator(),
		CSVEncoding:  s.cfg.InputCSVEncoding,
	})
	if err != nil {
		log.WithError(err).Error("failed to read table")
		return ExportResult{}, err
	}

	records, stats := Run(rows, NewTransformer(cols))
	log.WithFields(logrus.Fields{"records": stats.Total, "incomplete": stats.Incomplete}).Info("records transformed")

	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(opts.OutputDir, "backups")
	}
	outputs := ExportOutputs{
		Catalog:    filepath.Join(opts.OutputDir, CatalogFileName),
		Backup:     BackupPath(backupDir, start),
		Analysis:   filepath.Join(opts.OutputDir, AnalysisFileName),
		Statistics: filepath.Join(opts.OutputDir, StatisticsFileName),
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return ExportResult{}, err
	}

	catalog, err := EncodeCatalog(records)
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode catalog: %w", err)
	}
	if err := writeFile(outputs.Catalog, catalog); err != nil {
		return ExportResult{}, fmt.Errorf("write catalog: %w", err)
	}
	log.Infof("catalog written: %s", outputs.Catalog)

	if err := writeFile(outputs.Backup, catalog); err != nil {
		return ExportResult{}, fmt.Errorf("write backup: %w", err)
	}
	log.Infof("backup written: %s", outputs.Backup)

	if err := WriteAnalysisCSV(records, outputs.Analysis); err != nil {
		return ExportResult{}, fmt.Errorf("write analysis: %w", err)
	}
	log.Infof("analysis written: %s", outputs.Analysis)

	if opts.WriteXLSX {
		outputs.AnalysisXLSX = filepath.Join(opts.OutputDir, AnalysisXLSXName)
		if err := WriteAnalysisXLSX(records, outputs.AnalysisXLSX); err != nil {
			return ExportResult{}, fmt.Errorf("write analysis workbook: %w", err)
		}
		log.Infof("analysis workbook written: %s", outputs.AnalysisXLSX)
	}

	if err := WriteStatistics(stats, s.now(), outputs.Statistics); err != nil {
		return ExportResult{}, fmt.Errorf("write statistics: %w", err)
	}
	log.Infof("statistics written: %s", outputs.Statistics)

	if s.db != nil && s.cfg.ArchiveRuns {
		summary := internal.RunSummary{ID: runID, Source: opts.InputPath, StartedAt: start, Stats: stats}
		if err := s.db.InsertRun(summary, records); err != nil {
			return ExportResult{}, fmt.Errorf("archive run: %w", err)
		}
		log.Info("run archived")
	}

	if s.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(s.cfg.MetricsFile, stats, s.now()); err != nil {
			return ExportResult{}, fmt.Errorf("write metrics: %w", err)
		}
	}

	log.WithField("elapsedMs", time.Since(start).Milliseconds()).Info("export finished")
	return ExportResult{RunID: runID, Records: records, Stats: stats, Outputs: outputs}, nil
}
