package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// IntakeMetrics exposes counters/histograms for the Memed client, the
// reconciliation workflow and operator notifications.
type IntakeMetrics struct {
	memedRequests  *prometheus.CounterVec
	memedLatency   *prometheus.HistogramVec
	reconciliation *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	webhooks       *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		memedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drmente",
			Subsystem: "memed",
			Name:      "requests_total",
			Help:      "Total Memed API requests by operation and status class",
		}, []string{"operation", "status"}),
		memedLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drmente",
			Subsystem: "memed",
			Name:      "request_duration_seconds",
			Help:      "Latency of Memed API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		reconciliation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drmente",
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Patient reconciliation outcomes by policy",
		}, []string{"policy", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drmente",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Operator notification deliveries by sink and result",
		}, []string{"sink", "result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drmente",
			Subsystem: "formshare",
			Name:      "webhooks_total",
			Help:      "FormShare webhook deliveries by response status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.memedRequests, m.memedLatency, m.reconciliation, m.notifications, m.webhooks)
	return m
}

// ObserveRequest records one Memed call. status 0 means the request never got a response.
func (m *IntakeMetrics) ObserveRequest(operation string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.memedRequests.WithLabelValues(operation, statusClass(status)).Inc()
	m.memedLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *IntakeMetrics) ObserveOutcome(policy, outcome string) {
	if m == nil {
		return
	}
	m.reconciliation.WithLabelValues(policy, outcome).Inc()
}

func (m *IntakeMetrics) ObserveNotification(sink string, delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.notifications.WithLabelValues(sink, result).Inc()
}

func (m *IntakeMetrics) ObserveWebhook(status int) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(strconv.Itoa(status)).Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "network_error"
	}
	return strconv.Itoa(status/100) + "xx"
}
