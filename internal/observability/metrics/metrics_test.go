package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveOutcome("fast", "booked")
	m.ObserveOutcome("fast", "booked")
	m.ObserveOutcome("agent", "alternatives_offered")
	m.ObserveAgentIterations(3)
	m.ObserveExternalCall("calendar", "check_free_busy", "ok", 0.12)
	m.ObserveWebhook("ok")
	m.ObserveWebhookLatency("bookAppointment", 0.5)
	m.ObserveDuplicate("replayed")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	outcomes := byName["voicescheduler_booking_outcomes_total"]
	if outcomes == nil {
		t.Fatalf("outcomes counter not registered")
	}
	var fastBooked float64
	for _, metric := range outcomes.GetMetric() {
		labels := map[string]string{}
		for _, l := range metric.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["path"] == "fast" && labels["outcome"] == "booked" {
			fastBooked = metric.GetCounter().GetValue()
		}
	}
	if fastBooked != 2 {
		t.Fatalf("expected 2 fast bookings, got %v", fastBooked)
	}

	iterations := byName["voicescheduler_agent_iterations"]
	if iterations == nil || iterations.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one iteration sample")
	}
	if byName["voicescheduler_external_call_duration_seconds"] == nil {
		t.Fatalf("external call histogram missing")
	}
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewBookingMetrics(nil)
	m.ObserveWebhook("rejected")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveOutcome("fast", "booked")
	m.ObserveAgentIterations(1)
	m.ObserveExternalCall("model", "converse", "error", 1)
	m.ObserveWebhook("ok")
	m.ObserveWebhookLatency("checkAvailability", 0.1)
	m.ObserveDuplicate("in_flight")
}
