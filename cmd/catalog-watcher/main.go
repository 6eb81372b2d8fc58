package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"oelexport/internal/config"
	"oelexport/internal/listener"
	"oelexport/internal/logging"
	"oelexport/internal/pipeline"
	"oelexport/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, closeLog := logging.New(cfg)
	defer closeLog()

	var db *storage.DB
	if cfg.ArchiveRuns {
		db, err = storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
	}

	exporter := pipeline.NewExportService(db, cfg, log)
	svc := listener.NewService(exporter, cfg, pipeline.OptionsFromConfig(cfg), log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
