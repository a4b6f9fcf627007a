package usecase

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages reported in metrics.
const (
	StageAdmission = "admission"
	StageInference = "inference"
	StageKnowledge = "knowledge"
	StageStorage   = "storage"
	StageHistory   = "history"
)

// PipelineMetrics contains the Prometheus metrics of the detection pipeline.
type PipelineMetrics struct {
	StageOutcomes  *prometheus.CounterVec
	Duration       prometheus.Histogram
	BudgetOverruns prometheus.Counter
}

// NewPipelineMetrics creates the pipeline metrics and registers them on registry.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grovia_pipeline_stage_total",
			Help: "Pipeline stage executions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grovia_pipeline_duration_seconds",
			Help:    "End-to-end duration of detection requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		BudgetOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grovia_pipeline_budget_overruns_total",
			Help: "Detection requests that exceeded the processing budget.",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// ObserveStage counts one stage outcome.
func (m *PipelineMetrics) ObserveStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.StageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// ObserveDuration records the total request duration.
func (m *PipelineMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
}

// IncrementBudgetOverruns counts a request that ran past its budget.
func (m *PipelineMetrics) IncrementBudgetOverruns() {
	if m == nil {
		return
	}
	m.BudgetOverruns.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.StageOutcomes.Describe(ch)
	m.Duration.Describe(ch)
	m.BudgetOverruns.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.StageOutcomes.Collect(ch)
	m.Duration.Collect(ch)
	m.BudgetOverruns.Collect(ch)
}
