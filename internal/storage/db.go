package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"oelexport/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  total INTEGER NOT NULL,
  incomplete INTEGER NOT NULL,
  categoriesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_startedAt ON runs(startedAt);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  position INTEGER NOT NULL,
  internalId TEXT NOT NULL,
  articleNumber TEXT NOT NULL,
  manufacturer TEXT NOT NULL,
  description TEXT NOT NULL,
  approvalsJson TEXT NOT NULL,
  category TEXT NOT NULL,
  netCostJson TEXT NOT NULL,
  salePriceJson TEXT NOT NULL,
  remarks TEXT NOT NULL,
  status TEXT NOT NULL,
  missingFields TEXT NOT NULL,
  UNIQUE(runId, position),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_records_articleNumber ON records(articleNumber);
`

	_, err := d.conn.Exec(schema)
	return err
}

type categoryJSON struct {
	Category internal.Category `json:"category"`
	Count    int               `json:"count"`
}

// InsertRun archives a run and its records in one transaction.
func (d *DB) InsertRun(run internal.RunSummary, records []internal.CatalogRecord) error {
	cats := make([]categoryJSON, 0, len(run.Stats.Categories))
	for _, cc := range run.Stats.Categories {
		cats = append(cats, categoryJSON{Category: cc.Category, Count: cc.Count})
	}
	catsJSON, err := json.Marshal(cats)
	if err != nil {
		return err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO runs (id, source, startedAt, total, incomplete, categoriesJson)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, run.Source, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Stats.Total, run.Stats.Incomplete, string(catsJSON)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO records (
  runId, position, internalId, articleNumber, manufacturer, description,
  approvalsJson, category, netCostJson, salePriceJson, remarks, status, missingFields
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range records {
		approvalsJSON, _ := json.Marshal(rec.Approvals)
		netCostJSON, _ := json.Marshal(rec.NetCost)
		salePriceJSON, _ := json.Marshal(rec.SalePrice)
		if _, err := stmt.Exec(
			run.ID, i+1, rec.InternalID, rec.ArticleNumber, rec.Manufacturer, rec.Description,
			string(approvalsJSON), string(rec.Category), string(netCostJSON), string(salePriceJSON),
			rec.Remarks, string(rec.Status), rec.MissingFields,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRuns(limit int) ([]internal.RunSummary, error) {
	rows, err := d.conn.Query(`
SELECT id, source, startedAt, total, incomplete, categoriesJson
FROM runs ORDER BY startedAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(id string) (*internal.RunSummary, error) {
	row := d.conn.QueryRow(`
SELECT id, source, startedAt, total, incomplete, categoriesJson
FROM runs WHERE id = ?
`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (internal.RunSummary, error) {
	var (
		run       internal.RunSummary
		startedAt string
		catsJSON  string
	)
	if err := s.Scan(&run.ID, &run.Source, &startedAt, &run.Stats.Total, &run.Stats.Incomplete, &catsJSON); err != nil {
		return internal.RunSummary{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return internal.RunSummary{}, fmt.Errorf("run %s: bad startedAt %q: %w", run.ID, startedAt, err)
	}
	run.StartedAt = parsed

	var cats []categoryJSON
	_ = json.Unmarshal([]byte(catsJSON), &cats)
	for _, c := range cats {
		run.Stats.Categories = append(run.Stats.Categories, internal.CategoryCount{Category: c.Category, Count: c.Count})
	}
	return run, nil
}

// GetRunRecords returns the archived records of a run in input order.
func (d *DB) GetRunRecords(runID string) ([]internal.CatalogRecord, error) {
	rows, err := d.conn.Query(`
SELECT internalId, articleNumber, manufacturer, description, approvalsJson, category,
       netCostJson, salePriceJson, remarks, status, missingFields
FROM records WHERE runId = ? ORDER BY position ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogRecord
	for rows.Next() {
		var (
			rec           internal.CatalogRecord
			approvalsJSON string
			netCostJSON   string
			salePriceJSON string
			category      string
			status        string
		)
		if err := rows.Scan(
			&rec.InternalID, &rec.ArticleNumber, &rec.Manufacturer, &rec.Description, &approvalsJSON, &category,
			&netCostJSON, &salePriceJSON, &rec.Remarks, &status, &rec.MissingFields,
		); err != nil {
			return nil, err
		}
		rec.Category = internal.Category(category)
		rec.Status = internal.RecordStatus(status)
		rec.Approvals = []string{}
		_ = json.Unmarshal([]byte(approvalsJSON), &rec.Approvals)
		_ = json.Unmarshal([]byte(netCostJSON), &rec.NetCost)
		_ = json.Unmarshal([]byte(salePriceJSON), &rec.SalePrice)
		out = append(out, rec)
	}
	return out, rows.Err()
}
