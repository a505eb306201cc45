// Package metrics records per-run counters for the batch jobs. Runs are
// one-shot, so the registry is written to a node_exporter textfile instead
// of being served.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hed1ad/zigsense/pkg/capture"
)

// Recorder owns a private registry for one run.
type Recorder struct {
	registry *prometheus.Registry

	// PacketsIngested counts packets kept after normalization.
	PacketsIngested prometheus.Counter
	// RowsDropped counts input rows without a usable timestamp.
	RowsDropped prometheus.Counter
	// MissingFields counts tolerated missing values per column.
	MissingFields *prometheus.CounterVec
	// Windows counts produced feature or label rows per job.
	Windows *prometheus.CounterVec
	// Candidates is the size of the last candidate list per role.
	Candidates *prometheus.GaugeVec
	// Anomalies counts windows flagged as outliers.
	Anomalies prometheus.Counter
	// StageDuration measures each pipeline stage.
	StageDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		PacketsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "zigsense_packets_ingested_total",
			Help: "Packets loaded from the capture",
		}),
		RowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "zigsense_rows_dropped_total",
			Help: "Capture rows skipped for lack of a usable timestamp",
		}),
		MissingFields: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zigsense_missing_fields_total",
				Help: "Fields that were absent or failed to parse",
			},
			[]string{"column"},
		),
		Windows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zigsense_windows_total",
				Help: "Window rows produced",
			},
			[]string{"job"},
		),
		Candidates: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zigsense_role_candidates",
				Help: "Candidate addresses listed for a device role",
			},
			[]string{"role"},
		),
		Anomalies: factory.NewCounter(prometheus.CounterOpts{
			Name: "zigsense_anomalous_windows_total",
			Help: "Windows flagged as outliers",
		}),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zigsense_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 30, 120},
			},
			[]string{"stage"},
		),
	}
}

// ObserveIngest records reader statistics.
func (r *Recorder) ObserveIngest(s capture.IngestStats) {
	r.PacketsIngested.Add(float64(s.Rows))
	r.RowsDropped.Add(float64(s.Dropped))
	for col, n := range s.Missing {
		r.MissingFields.WithLabelValues(col).Add(float64(n))
	}
}

// Time starts timing a stage; call the returned func when it ends.
func (r *Recorder) Time(stage string) func() {
	start := time.Now()
	return func() {
		r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the registry in text exposition format.
func (r *Recorder) WriteTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", filename)
	}
	return nil
}
