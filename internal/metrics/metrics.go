package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"oelexport/internal"
)

// WriteTextfile writes the gauges of one run in the node-exporter textfile
// format. A fresh registry is used per run so stale categories disappear.
func WriteTextfile(path string, stats internal.RunStatistics, finishedAt time.Time) error {
	reg := prometheus.NewRegistry()

	total := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oelexport_records_total",
		Help: "Records produced by the last export run",
	})
	incomplete := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oelexport_records_incomplete",
		Help: "Records with at least one missing required field",
	})
	byCategory := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oelexport_records_by_category",
		Help: "Records per product category",
	}, []string{"category"})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oelexport_last_run_timestamp_seconds",
		Help: "Unix time the last export run finished",
	})
	reg.MustRegister(total, incomplete, byCategory, lastRun)

	total.Set(float64(stats.Total))
	incomplete.Set(float64(stats.Incomplete))
	for _, cc := range stats.Categories {
		byCategory.WithLabelValues(string(cc.Category)).Set(float64(cc.Count))
	}
	lastRun.Set(float64(finishedAt.Unix()))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}
