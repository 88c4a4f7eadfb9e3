package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects engine telemetry on its own registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messagesTotal   *prometheus.CounterVec
	messageLatency  *prometheus.HistogramVec
	gasUsed         *prometheus.HistogramVec
	logsTotal       *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	deploymentsSeen prometheus.Counter
}

// NewMetrics creates a collector. An empty namespace defaults to "diamond".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "diamond"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "Total number of top-level messages by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	m.messageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "message_duration_seconds",
			Help:      "Wall time spent executing a message",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~1.6s
		},
		[]string{"kind"},
	)

	m.gasUsed = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "gas_used",
			Help:      "Gas consumed per message",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 12),
		},
		[]string{"kind"},
	)

	m.logsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "logs_total",
			Help:      "Total number of committed logs by event name",
		},
		[]string{"event"},
	)

	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Messages waiting for the run loop",
		},
	)

	m.deploymentsSeen = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "deployments_total",
			Help:      "Total number of successful deployments",
		},
	)

	m.registry.MustRegister(
		m.messagesTotal,
		m.messageLatency,
		m.gasUsed,
		m.logsTotal,
		m.queueDepth,
		m.deploymentsSeen,
	)

	return m
}

// Registry returns the Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) recordMessage(kind, status string, gas uint64, d time.Duration) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(kind, status).Inc()
	m.messageLatency.WithLabelValues(kind).Observe(d.Seconds())
	m.gasUsed.WithLabelValues(kind).Observe(float64(gas))
	if kind == "deploy" && status == "success" {
		m.deploymentsSeen.Inc()
	}
}

func (m *Metrics) recordLog(event string) {
	if m == nil {
		return
	}
	m.logsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
