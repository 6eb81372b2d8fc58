package listener

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"oelexport/internal/config"
	"oelexport/internal/pipeline"
)

type Exporter interface {
	Export(opts pipeline.ExportOptions) (pipeline.ExportResult, error)
}

// Service re-runs the full export whenever the input file changes.
type Service struct {
	exporter Exporter
	cfg      config.Config
	opts     pipeline.ExportOptions
	log      *logrus.Logger

	// runs is notified after every export cycle; used by tests.
	runs chan<- error
}

func NewService(exporter Exporter, cfg config.Config, opts pipeline.ExportOptions, log *logrus.Logger) *Service {
	return &Service{exporter: exporter, cfg: cfg, opts: opts, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(s.opts.InputPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	s.log.Infof("watching %s", target)

	s.runCycle()

	debounce := time.Duration(s.cfg.WatchDebounceMs) * time.Millisecond
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			pending = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("watcher error")
		case <-pending:
			pending = nil
			s.runCycle()
		}
	}
}

func (s *Service) runCycle() {
	res, err := s.exporter.Export(s.opts)
	if err != nil {
		s.log.WithError(err).Error("export cycle failed")
	} else {
		s.log.WithFields(logrus.Fields{"records": res.Stats.Total, "incomplete": res.Stats.Incomplete}).Info("export cycle done")
	}
	if s.runs != nil {
		s.runs <- err
	}
}
