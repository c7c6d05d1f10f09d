// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crowd_safety"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Window metrics
	WindowsPlanned  prometheus.Counter
	ChunksProcessed prometheus.Counter

	// Analysis metrics
	AnalysisTotal   *prometheus.CounterVec
	AnalysisErrors  *prometheus.CounterVec
	AnalysisLatency *prometheus.HistogramVec
	RecordsAccepted prometheus.Counter
	RecordsDropped  *prometheus.CounterVec

	// Prediction metrics
	Predictions *prometheus.CounterVec

	// Dispatch metrics
	DispatchDecisions *prometheus.CounterVec
	LedgerSize        prometheus.Gauge

	// Publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec

	// Router metrics
	MessagesRouted     *prometheus.CounterVec
	MessagesUnroutable prometheus.Counter
	FlowDuration       *prometheus.HistogramVec

	// Store metrics
	StoreReads      prometheus.Counter
	StoreReadErrors prometheus.Counter
	StoreAppends    prometheus.Counter

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionMessages prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Window metrics
		WindowsPlanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_planned_total",
			Help:      "Total number of time windows planned by the segmenter",
		}),
		ChunksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Total number of video chunks fed through the pipeline",
		}),

		// Analysis metrics
		AnalysisTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Total number of analyzer invocations",
		}, []string{"provider"}),
		AnalysisErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_errors_total",
			Help:      "Total number of failed analyzer invocations",
		}, []string{"provider"}),
		AnalysisLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Analyzer call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		RecordsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Total number of assessment records accepted after validation",
		}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total number of assessment records dropped",
		}, []string{"reason"}),

		// Prediction metrics
		Predictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of trend predictions by recommended unit",
		}, []string{"unit"}),

		// Dispatch metrics
		DispatchDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_decisions_total",
			Help:      "Total number of dispatch decisions by unit and outcome",
		}, []string{"unit", "outcome"}),
		LedgerSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_ledger_size",
			Help:      "Number of entries currently in the dispatch ledger",
		}),

		// Publish metrics
		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of dispatch messages published",
		}, []string{"topic"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of publish errors",
		}, []string{"topic"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Router metrics
		MessagesRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Total number of messages routed by flow kind",
		}, []string{"flow"}),
		MessagesUnroutable: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_unroutable_total",
			Help:      "Total number of messages that could not be classified",
		}),
		FlowDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "End-to-end flow handling duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"flow"}),

		// Store metrics
		StoreReads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reads_total",
			Help:      "Total number of event store reads",
		}),
		StoreReadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_read_errors_total",
			Help:      "Total number of failed event store reads",
		}),
		StoreAppends: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_appends_total",
			Help:      "Total number of event documents appended to the store",
		}),

		// Session metrics
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently held in the session store",
		}),
		SessionMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_messages_total",
			Help:      "Total number of messages appended to session histories",
		}),
	}
}

// RecordWindowsPlanned records windows produced by one segmentation plan.
func (m *Metrics) RecordWindowsPlanned(count int) {
	m.WindowsPlanned.Add(float64(count))
}

// RecordChunkProcessed records one chunk moving through the pipeline.
func (m *Metrics) RecordChunkProcessed() {
	m.ChunksProcessed.Inc()
}

// RecordAnalysis records an analyzer invocation.
func (m *Metrics) RecordAnalysis(provider string, err error, latencySeconds float64) {
	m.AnalysisTotal.WithLabelValues(provider).Inc()
	m.AnalysisLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.AnalysisErrors.WithLabelValues(provider).Inc()
	}
}

// RecordRecordAccepted records a validated assessment record.
func (m *Metrics) RecordRecordAccepted() {
	m.RecordsAccepted.Inc()
}

// RecordRecordDropped records an assessment record dropped before use.
func (m *Metrics) RecordRecordDropped(reason string) {
	m.RecordsDropped.WithLabelValues(reason).Inc()
}

// RecordPrediction records a prediction outcome.
func (m *Metrics) RecordPrediction(unit string) {
	m.Predictions.WithLabelValues(unit).Inc()
}

// RecordDispatchDecision records a dispatch decision outcome.
func (m *Metrics) RecordDispatchDecision(unit, outcome string) {
	m.DispatchDecisions.WithLabelValues(unit, outcome).Inc()
}

// RecordPublish records a publish attempt.
func (m *Metrics) RecordPublish(topic string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(topic).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(topic).Inc()
	}
}

// RecordMessageRouted records a classified message.
func (m *Metrics) RecordMessageRouted(flow string) {
	m.MessagesRouted.WithLabelValues(flow).Inc()
}

// RecordMessageUnroutable records a message that failed classification.
func (m *Metrics) RecordMessageUnroutable() {
	m.MessagesUnroutable.Inc()
}

// RecordFlowDuration records how long a flow took end to end.
func (m *Metrics) RecordFlowDuration(flow string, seconds float64) {
	m.FlowDuration.WithLabelValues(flow).Observe(seconds)
}

// RecordStoreRead records an event store read.
func (m *Metrics) RecordStoreRead(err error) {
	m.StoreReads.Inc()
	if err != nil {
		m.StoreReadErrors.Inc()
	}
}

// RecordStoreAppend records an event document append.
func (m *Metrics) RecordStoreAppend() {
	m.StoreAppends.Inc()
}

// RecordSessionMessage records a message appended to a session history.
func (m *Metrics) RecordSessionMessage() {
	m.SessionMessages.Inc()
}
