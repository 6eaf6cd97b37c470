package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the voice booking flow.
type BookingMetrics struct {
	outcomesTotal    *prometheus.CounterVec
	agentIterations  prometheus.Histogram
	externalDuration *prometheus.HistogramVec
	webhookTotal     *prometheus.CounterVec
	webhookLatency   *prometheus.HistogramVec
	duplicatesTotal  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicescheduler",
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Booking outcomes by resolution path",
		}, []string{"path", "outcome"}),
		agentIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicescheduler",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Model round trips per agent run",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		externalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicescheduler",
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "Latency of calendar and model calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"collaborator", "op", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicescheduler",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Inbound voice tool-call webhooks",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicescheduler",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of voice tool-call processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		duplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicescheduler",
			Subsystem: "webhook",
			Name:      "duplicate_deliveries_total",
			Help:      "Retried deliveries answered without re-running the booking",
		}, []string{"state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomesTotal, m.agentIterations, m.externalDuration, m.webhookTotal, m.webhookLatency, m.duplicatesTotal)
	return m
}

// ObserveOutcome counts one resolved request. path is "fast", "agent" or "check".
func (m *BookingMetrics) ObserveOutcome(path, outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(path, outcome).Inc()
}

func (m *BookingMetrics) ObserveAgentIterations(n int) {
	if m == nil {
		return
	}
	m.agentIterations.Observe(float64(n))
}

// ObserveExternalCall satisfies the calendar and conversation call observers.
func (m *BookingMetrics) ObserveExternalCall(collaborator, op, status string, seconds float64) {
	if m == nil {
		return
	}
	m.externalDuration.WithLabelValues(collaborator, op, status).Observe(seconds)
}

func (m *BookingMetrics) ObserveWebhook(status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveWebhookLatency(tool string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(tool).Observe(seconds)
}

// ObserveDuplicate counts a retried delivery; state is "replayed" or "in_flight".
func (m *BookingMetrics) ObserveDuplicate(state string) {
	if m == nil {
		return
	}
	m.duplicatesTotal.WithLabelValues(state).Inc()
}
