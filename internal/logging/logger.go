package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"oelexport/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// New builds the run logger. Entries go to stderr and are appended to
// cfg.LogFile; when the file cannot be opened the logger stays console-only.
func New(cfg config.Config) (*logrus.Logger, func()) {
	return NewWithConsole(cfg, os.Stderr)
}

func NewWithConsole(cfg config.Config, console io.Writer) (*logrus.Logger, func()) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
		DisableColors:   true,
	})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetOutput(console)

	if cfg.LogFile == "" {
		return logger, func() {}
	}

	file, err := openAppend(cfg.LogFile)
	if err != nil {
		logger.WithError(err).Warn("log file unavailable, logging to console only")
		return logger, func() {}
	}
	logger.SetOutput(io.MultiWriter(console, file))
	return logger, func() { _ = file.Close() }
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
