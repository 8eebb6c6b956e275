// Package metrics counts the work done by a command line run and writes
// the counters in the node exporter textfile format.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/repair"
)

// Outcome labels for processed files.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

type Metrics struct {
	reg *prometheus.Registry

	Files        *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	Tokens       prometheus.Counter
	Records      prometheus.Counter
	DroppedBytes prometheus.Counter
	Duration     prometheus.Histogram
}

// New registers the counters of tool on a private registry.
func New(tool string) *Metrics {
	labels := prometheus.Labels{"tool": tool}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fitcodec_files_total",
			Help:        "Files processed, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fitcodec_failures_total",
			Help:        "Failed files, by error kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		Tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fitcodec_tokens_total",
			Help:        "Tokens read.",
			ConstLabels: labels,
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fitcodec_records_total",
			Help:        "Data records read or validated.",
			ConstLabels: labels,
		}),
		DroppedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fitcodec_dropped_bytes_total",
			Help:        "Bytes removed by the drop search or slices.",
			ConstLabels: labels,
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "fitcodec_file_duration_seconds",
			Help:        "Time spent per file.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	m.reg.MustRegister(m.Files, m.Failures, m.Tokens, m.Records, m.DroppedBytes, m.Duration)
	return m
}

// Done records one processed file.
func (m *Metrics) Done(start time.Time, err error) {
	m.Duration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.Files.WithLabelValues(OutcomeOK).Inc()
		return
	}
	m.Files.WithLabelValues(OutcomeFailed).Inc()
	m.Failures.WithLabelValues(Kind(err)).Inc()
}

// Repaired adds the counts of a repair result.
func (m *Metrics) Repaired(res *repair.Result) {
	m.Records.Add(float64(res.Records))
	m.DroppedBytes.Add(float64(res.DroppedBytes))
}

// Kind names the error class of err for the failures counter.
func Kind(err error) string {
	switch {
	case errors.Is(err, repair.ErrConfig), errors.Is(err, profile.ErrMissingArtifact):
		return "config"
	case errors.Is(err, repair.ErrBacktrackExhausted):
		return "backtrack"
	case errors.Is(err, fitstream.ErrFormat):
		return "format"
	case errors.Is(err, fitstream.ErrFraming):
		return "framing"
	case errors.Is(err, fitstream.ErrValue):
		return "value"
	default:
		return "other"
	}
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}

// WriteFile atomically writes the counters to path.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
