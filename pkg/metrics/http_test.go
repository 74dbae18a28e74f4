package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestHTTPMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)

	metrics.IncInflight()
	metrics.ObserveRequest("GET", "/api/appointments", 200, 80*time.Millisecond)
	metrics.ObserveRequest("GET", "/api/appointments", 500, 120*time.Millisecond)
	metrics.DecInflight()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "http_requests_total", "status", "2xx"); err != nil {
		t.Fatalf("fetch 2xx total: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 2xx total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "http_requests_total", "status", "5xx"); err != nil {
		t.Fatalf("fetch 5xx total: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 5xx total=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/api/appointments"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got := fetchGaugeValue(mfs, "http_requests_in_flight"); got != 0 {
		t.Fatalf("expected in-flight gauge back at 0, got %f", got)
	}
}

func TestHTTPMetricsNormalizesLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)

	metrics.ObserveRequest("", "  ", 102, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if _, err := fetchCounterValue(mfs, "http_requests_total", "method", "unknown"); err != nil {
		t.Fatalf("blank method must collapse to unknown: %v", err)
	}
	if _, err := fetchCounterValue(mfs, "http_requests_total", "status", "unknown"); err != nil {
		t.Fatalf("1xx status must collapse to unknown: %v", err)
	}
}

func TestHTTPMetricsNilReceiverIsInert(t *testing.T) {
	var metrics *HTTPMetrics
	metrics.ObserveRequest("GET", "/", 200, time.Millisecond)
	metrics.IncInflight()
	metrics.DecInflight()

	unregistered := NewHTTPMetrics(nil)
	unregistered.ObserveRequest("GET", "/", 200, time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	sum := 0.0
	found := false
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			sum += metric.GetHistogram().GetSampleSum()
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
	}
	return sum, nil
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name string) float64 {
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return -1
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
