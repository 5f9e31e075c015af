package jobs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(vec *prometheus.CounterVec, labels ...string) float64 {
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return -1
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func histogramCount(vec *prometheus.HistogramVec, labels ...string) uint64 {
	o, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	metric, ok := o.(prometheus.Metric)
	if !ok {
		return 0
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.IncJobsTotal(JobTypeGridReconcile, StatusSuccess)
	m.ObserveJobDuration(JobTypeGridReconcile, 0.5)
	m.IncJobErrors(JobTypeGridReconcile, "error")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	want := map[string]bool{
		MetricBackgroundJobsTotal:      false,
		MetricBackgroundJobsDuration:   false,
		MetricBackgroundJobErrorsTotal: false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not gathered", name)
		}
	}

	if err := m.Register(reg); err == nil {
		t.Error("expected error registering twice")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncJobsTotal(JobTypeIdempotencyCleanup, StatusSuccess)
	m.ObserveJobDuration(JobTypeIdempotencyCleanup, 1)
	m.IncJobErrors(JobTypeIdempotencyCleanup, "error")
}

func TestMetrics_LabelsAreIndependent(t *testing.T) {
	m := NewMetrics()
	m.IncJobsTotal(JobTypeRateLimitCleanup, StatusSuccess)
	m.IncJobsTotal(JobTypeRateLimitCleanup, StatusSuccess)
	m.IncJobsTotal(JobTypeRateLimitCleanup, StatusFailure)

	if got := counterValue(m.jobsTotal, JobTypeRateLimitCleanup, StatusSuccess); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := counterValue(m.jobsTotal, JobTypeRateLimitCleanup, StatusFailure); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}
	if got := counterValue(m.jobsTotal, JobTypeGridReconcile, StatusSuccess); got != 0 {
		t.Errorf("untouched job type = %v, want 0", got)
	}
}
