package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Extraction collects per-run metrics. It is written out for the node_exporter
// textfile collector since the process does not live long enough to be scraped.
type Extraction struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Duration     prometheus.Histogram
	LastExitCode prometheus.Gauge
	LastRun      prometheus.Gauge
}

func New() *Extraction {
	m := &Extraction{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xy2osm",
			Name:      "extractions_total",
			Help:      "Osmosis runs by exit code.",
		}, []string{"exit_code"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "xy2osm",
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of osmosis runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		LastExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xy2osm",
			Name:      "last_exit_code",
			Help:      "Exit code of the most recent osmosis run, -1 if it did not start.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xy2osm",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent osmosis run finished.",
		}),
	}
	m.registry.MustRegister(m.Runs, m.Duration, m.LastExitCode, m.LastRun)
	return m
}

func (m *Extraction) ObserveExtraction(exitCode int, d time.Duration) {
	m.Runs.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	m.Duration.Observe(d.Seconds())
	m.LastExitCode.Set(float64(exitCode))
	m.LastRun.SetToCurrentTime()
}

func (m *Extraction) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteFile writes the metrics atomically in text exposition format.
func (m *Extraction) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
