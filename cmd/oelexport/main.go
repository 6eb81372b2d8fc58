package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"oelexport/internal/catalog"
	"oelexport/internal/config"
	"oelexport/internal/listener"
	"oelexport/internal/logging"
	"oelexport/internal/pipeline"
	"oelexport/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", cfg.InputPath, "input table (xlsx|csv|html)")
		inType := fs.String("type", cfg.InputType, "xlsx|csv|html, inferred from extension when empty")
		out := fs.String("out", cfg.OutputDir, "output directory")
		withXLSX := fs.Bool("xlsx", false, "also write analyse.xlsx")
		_ = fs.Parse(os.Args[2:])

		log, closeLog := logging.New(cfg)
		db := openArchive(cfg, log)
		cleanup := closer(db, closeLog)
		defer cleanup()

		opts := pipeline.OptionsFromConfig(cfg)
		opts.InputPath = *input
		opts.InputType = strings.ToLower(strings.TrimSpace(*inType))
		if *out != cfg.OutputDir {
			opts.OutputDir = *out
			opts.BackupDir = ""
		}
		opts.WriteXLSX = *withXLSX
		fatal(log, "export aborted", cfg.Require("input", opts.InputPath), cleanup)

		res, err := pipeline.NewExportService(db, cfg, log).Export(opts)
		fatal(log, "export aborted", err, cleanup)
		fmt.Printf("export done records=%d incomplete=%d catalog=%s\n", res.Stats.Total, res.Stats.Incomplete, res.Outputs.Catalog)
	case "search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		query := fs.String("query", "", "search text, fuzzy")
		catalogPath := fs.String("catalog", "", "catalog document, defaults to <OUTPUT_DIR>/localdb.json")
		_ = fs.Parse(os.Args[2:])
		path := *catalogPath
		if path == "" {
			path = filepath.Join(cfg.OutputDir, pipeline.CatalogFileName)
		}
		records, err := catalog.Load(path)
		must(err)
		idx := catalog.BuildIndex(records)
		matches := idx.Lookup(*query)
		if len(matches) == 0 {
			matches = idx.Search(*query)
		}
		for _, rec := range matches {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n", rec.InternalID, rec.ArticleNumber, rec.Manufacturer, rec.Description, rec.Category, strings.Join(rec.Approvals, ", "))
		}
		fmt.Printf("%d of %d records\n", len(matches), len(records))
	case "history":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, run := range runs {
			fmt.Printf("%s  %s  total=%d incomplete=%d  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.ID, run.Stats.Total, run.Stats.Incomplete, run.Source)
		}
	case "watch":
		log, closeLog := logging.New(cfg)
		db := openArchive(cfg, log)
		cleanup := closer(db, closeLog)
		defer cleanup()
		svc := listener.NewService(pipeline.NewExportService(db, cfg, log), cfg, pipeline.OptionsFromConfig(cfg), log)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		fatal(log, "watch stopped", svc.Run(ctx), cleanup)
	default:
		usage()
		os.Exit(1)
	}
}

// openArchive returns nil when archiving is disabled or the database cannot
// be opened; the export itself does not depend on it.
func openArchive(cfg config.Config, log *logrus.Logger) *storage.DB {
	if !cfg.ArchiveRuns {
		return nil
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Warn("run archive unavailable")
		return nil
	}
	return db
}

func usage() {
	fmt.Println("usage: oelexport <command>")
	fmt.Println("commands:")
	fmt.Println("  export [--input=Artikel.xlsx] [--type=xlsx|csv|html] [--out=Bearbeitet] [--xlsx]")
	fmt.Println("  search --query=... [--catalog=Bearbeitet/localdb.json]")
	fmt.Println("  history [--limit=20]")
	fmt.Println("  watch")
}

var exit = os.Exit

// closer releases the archive and the log file, in that order.
func closer(db *storage.DB, closeLog func()) func() {
	return func() {
		if db != nil {
			_ = db.Close()
		}
		closeLog()
	}
}

// fatal logs err, releases resources and exits. Deferred calls do not run
// after os.Exit, so cleanup has to happen here.
func fatal(log *logrus.Logger, msg string, err error, cleanup func()) {
	if err == nil {
		return
	}
	log.WithError(err).Error(msg)
	if cleanup != nil {
		cleanup()
	}
	must(err)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	exit(1)
}
