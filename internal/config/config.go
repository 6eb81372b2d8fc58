package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	InputPath         string
	InputType         string
	InputSheet        string
	InputCSVSeparator string
	InputCSVEncoding  string
	ColumnMapPath     string

	OutputDir string
	BackupDir string

	LogFile  string
	LogLevel string

	DBPath      string
	ArchiveRuns bool
	MetricsFile string

	WatchDebounceMs int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	outputDir := getEnv("OUTPUT_DIR", filepath.Join(cwd, "Bearbeitet"))

	cfg := Config{
		InputPath:         getEnv("INPUT_PATH", filepath.Join(cwd, "Artikel.xlsx")),
		InputType:         strings.ToLower(strings.TrimSpace(getEnv("INPUT_TYPE", ""))),
		InputSheet:        getEnv("INPUT_SHEET", ""),
		InputCSVSeparator: getEnv("INPUT_CSV_SEPARATOR", ";"),
		InputCSVEncoding:  strings.ToLower(strings.TrimSpace(getEnv("INPUT_CSV_ENCODING", "utf-8"))),
		ColumnMapPath:     getEnv("COLUMN_MAP_PATH", ""),

		OutputDir: outputDir,
		BackupDir: getEnv("BACKUP_DIR", filepath.Join(outputDir, "backups")),

		LogFile:  getEnv("LOG_FILE", filepath.Join(outputDir, "export_log.txt")),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBPath:      getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		ArchiveRuns: getEnvBool("ARCHIVE_RUNS", true),
		MetricsFile: getEnv("METRICS_FILE", ""),

		WatchDebounceMs: getEnvInt("WATCH_DEBOUNCE_MS", 500),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

// CSVSeparator returns the first rune of InputCSVSeparator, defaulting to ';'.
func (c Config) CSVSeparator() rune {
	for _, r := range c.InputCSVSeparator {
		return r
	}
	return ';'
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
