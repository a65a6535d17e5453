// Package metrics provides custom Prometheus metrics for the components of mfcc-go.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stage and outcome label values.
const (
	StageRead  = "read"
	StageInfer = "infer"
	StageLoad  = "load"

	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// PipelineMetrics contains Prometheus metrics for the extraction pipeline.
// All methods are safe to call on a nil receiver.
type PipelineMetrics struct {
	WindowsProduced  prometheus.Counter
	WindowsConsumed  prometheus.Counter
	ChunksDropped    prometheus.Counter
	RowsEmitted      prometheus.Counter
	Retries          *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ActivePipelines  prometheus.Gauge
	QueueDepth       prometheus.Gauge
	ModuleLoadsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.WindowsProduced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mfcc_pipeline_windows_produced_total",
		Help: "Total number of audio windows read and queued by producers",
	})

	m.WindowsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mfcc_pipeline_windows_consumed_total",
		Help: "Total number of audio windows processed by the feature module",
	})

	m.ChunksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mfcc_pipeline_chunks_dropped_total",
		Help: "Total number of macro-chunks too short to produce a window",
	})

	m.RowsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mfcc_pipeline_rows_emitted_total",
		Help: "Total number of feature rows produced",
	})

	m.Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfcc_pipeline_retries_total",
			Help: "Total number of retried window operations",
		},
		[]string{"stage"}, // stage: read, infer
	)

	m.Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfcc_pipeline_failures_total",
			Help: "Total number of failed extractions by error kind",
		},
		[]string{"kind"},
	)

	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mfcc_pipeline_stage_duration_seconds",
			Help:    "Time spent per window in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"stage"},
	)

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfcc_pipeline_runs_total",
			Help: "Total number of completed extractions by outcome",
		},
		[]string{"status"},
	)

	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mfcc_pipeline_run_duration_seconds",
		Help:    "Wall time of complete extractions",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5min
	})

	m.ActivePipelines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mfcc_pipeline_active",
		Help: "Number of extractions currently running",
	})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mfcc_pipeline_queue_depth",
		Help: "Windows waiting in hand-off queues",
	})

	m.ModuleLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfcc_feature_module_loads_total",
			Help: "Total number of feature module load attempts",
		},
		[]string{"status"},
	)

	return nil
}

// RecordWindowProduced counts a queued window and the read time it took.
func (m *PipelineMetrics) RecordWindowProduced(d time.Duration) {
	if m == nil {
		return
	}
	m.WindowsProduced.Inc()
	m.QueueDepth.Inc()
	m.StageDuration.WithLabelValues(StageRead).Observe(d.Seconds())
}

// RecordWindowConsumed counts a processed window, its rows and infer time.
func (m *PipelineMetrics) RecordWindowConsumed(rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.WindowsConsumed.Inc()
	m.RowsEmitted.Add(float64(rows))
	m.StageDuration.WithLabelValues(StageInfer).Observe(d.Seconds())
}

// RecordDequeued lowers the queue depth gauge.
func (m *PipelineMetrics) RecordDequeued() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}

// RecordDropped counts macro-chunks that produced no window.
func (m *PipelineMetrics) RecordDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ChunksDropped.Add(float64(n))
}

// RecordRetry counts a retried read or infer.
func (m *PipelineMetrics) RecordRetry(stage string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(stage).Inc()
}

// RecordModuleLoad counts a module load attempt.
func (m *PipelineMetrics) RecordModuleLoad(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.ModuleLoadsTotal.WithLabelValues(status).Inc()
}

// RunStarted marks an extraction as active.
func (m *PipelineMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.ActivePipelines.Inc()
}

// RunFinished records the outcome of an extraction. kind is empty on success.
// leftInQueue windows still queued when the run ended are removed from the
// queue depth gauge.
func (m *PipelineMetrics) RunFinished(kind, status string, leftInQueue int, d time.Duration) {
	if m == nil {
		return
	}
	m.ActivePipelines.Dec()
	m.QueueDepth.Sub(float64(leftInQueue))
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	if kind != "" {
		m.Failures.WithLabelValues(kind).Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.WindowsProduced.Describe(ch)
	m.WindowsConsumed.Describe(ch)
	m.ChunksDropped.Describe(ch)
	m.RowsEmitted.Describe(ch)
	m.Retries.Describe(ch)
	m.Failures.Describe(ch)
	m.StageDuration.Describe(ch)
	m.RunsTotal.Describe(ch)
	m.RunDuration.Describe(ch)
	m.ActivePipelines.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.ModuleLoadsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.WindowsProduced.Collect(ch)
	m.WindowsConsumed.Collect(ch)
	m.ChunksDropped.Collect(ch)
	m.RowsEmitted.Collect(ch)
	m.Retries.Collect(ch)
	m.Failures.Collect(ch)
	m.StageDuration.Collect(ch)
	m.RunsTotal.Collect(ch)
	m.RunDuration.Collect(ch)
	m.ActivePipelines.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.ModuleLoadsTotal.Collect(ch)
}
