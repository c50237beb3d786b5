package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLedgerMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	tenant := "lilotri"
	m.IncSubmission(tenant, OutcomeAppended)
	m.IncSubmission(tenant, OutcomeAppended)
	m.IncSubmission(tenant, OutcomeRefused)
	m.AddSchemaExtensions(tenant, 2)
	m.AddDuplicates(tenant, 1)
	m.IncNotificationSent(tenant)
	m.IncNotificationFailed(tenant)
	m.ObserveReconcile(tenant, 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ledger_submissions_total", map[string]string{"tenant": tenant, "outcome": OutcomeAppended}); err != nil {
		t.Fatalf("fetch submissions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected appended=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_schema_extensions_total", map[string]string{"tenant": tenant}); err != nil {
		t.Fatalf("fetch extensions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected extensions=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_notifications_failed_total", map[string]string{"tenant": tenant}); err != nil {
		t.Fatalf("fetch notify failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "ledger_reconcile_duration_seconds", map[string]string{"tenant": tenant}); err != nil {
		t.Fatalf("fetch reconcile: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected reconcile sum > 0, got %f", got)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncSubmission("t", OutcomeFailed)
	m.ObserveReconcile("t", time.Second)

	noop := NewLedgerMetrics(nil)
	noop.AddSchemaExtensions("t", 3)
	noop.IncNotificationSent("t")
}

func TestEmptyLabelsNormalized(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.IncSubmission("", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if _, err := fetchCounterValue(mfs, "ledger_submissions_total", map[string]string{"tenant": "unknown", "outcome": "unknown"}); err != nil {
		t.Fatalf("expected normalized labels: %v", err)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
