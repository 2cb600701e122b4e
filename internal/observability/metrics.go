package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/covid-report/internal/contracts"
)

const namespace = "covid_report"

// Metrics holds the Prometheus counters, histograms and gauges for one
// report process. They live on a private registry that is flushed to a
// node-exporter textfile at the end of each run; no listener is opened.
type Metrics struct {
	Registry *prometheus.Registry

	SourceFetches  *prometheus.CounterVec   // labels: source, outcome={success,error}
	AlignmentGaps  *prometheus.CounterVec   // labels: stage, table
	SectionRenders *prometheus.CounterVec   // labels: page, section, outcome={ok,omitted}
	StageDuration  *prometheus.HistogramVec // labels: stage
	Runs           *prometheus.CounterVec   // labels: outcome={success,fatal}
	LastSuccess    prometheus.Gauge
}

// NewMetrics creates all report metrics on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Upstream source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		AlignmentGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alignment_gap_rows_total",
			Help:      "Rows excluded because their code was missing from a lookup table.",
		}, []string{"stage", "table"}),
		SectionRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_render_total",
			Help:      "Report sections by page and outcome.",
		}, []string{"page", "section", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that produced pages.",
		}),
	}

	m.Registry.MustRegister(
		m.SourceFetches,
		m.AlignmentGaps,
		m.SectionRenders,
		m.StageDuration,
		m.Runs,
		m.LastSuccess,
	)

	return m
}

// NewMetricsForTesting is NewMetrics; each call already owns its registry
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// SourceFetched records one fetch attempt
func (m *Metrics) SourceFetched(source contracts.SourceName, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.SourceFetches.WithLabelValues(string(source), outcome).Inc()
}

// AlignmentGap records rows excluded by a lookup miss
func (m *Metrics) AlignmentGap(gap contracts.AlignmentGap) {
	if gap.Rows == 0 {
		return
	}
	m.AlignmentGaps.WithLabelValues(gap.Stage.String(), gap.Table).Add(float64(gap.Rows))
}

// SectionRendered records whether a section made it into the page
func (m *Metrics) SectionRendered(page, section string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "omitted"
	}
	m.SectionRenders.WithLabelValues(page, section, outcome).Inc()
}

// ObserveStage records the time spent in stage
func (m *Metrics) ObserveStage(stage contracts.Stage, d time.Duration) {
	m.StageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

// RunFinished records the run outcome
func (m *Metrics) RunFinished(at time.Time, err error) {
	if err != nil {
		m.Runs.WithLabelValues("fatal").Inc()
		return
	}
	m.Runs.WithLabelValues("success").Inc()
	m.LastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile flushes the registry for the node-exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
