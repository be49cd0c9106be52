package perf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/storefront/storefront/internal/catalog"
	jobmetrics "github.com/storefront/storefront/internal/jobs"
	"github.com/storefront/storefront/jobs"
)

type flakyMailer struct {
	calls  int
	failAt map[int]bool
}

func (m *flakyMailer) Send(context.Context, string, string, string) error {
	m.calls++
	if m.failAt[m.calls] {
		return errors.New("relay timeout")
	}
	return nil
}

type slowStock struct{ delay time.Duration }

func (s slowStock) LowStock(context.Context, int) ([]catalog.Product, error) {
	time.Sleep(s.delay)
	return []catalog.Product{{ID: 1, Name: "Mesa", Stock: 1}}, nil
}

func TestJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	mailer := &flakyMailer{failAt: map[int]bool{7: true, 31: true, 52: true}}
	sendJob := jobs.NewSendEmailJob(mailer, logger, metrics)
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{Kind: jobs.MailOrderConfirmation, To: "ana@example.com", Subject: "s", Body: "b"})
	if err != nil {
		t.Fatalf("build mail task: %v", err)
	}
	failures := 0
	for i := 0; i < 60; i++ {
		if err := sendJob.Handle(ctx, task); err != nil {
			failures++
		}
	}
	if failures != 3 {
		t.Fatalf("expected 3 relay failures to propagate, got %d", failures)
	}

	scanJob := jobs.NewLowStockScanJob(slowStock{delay: 20 * time.Millisecond}, logger, metrics)
	scanTask, err := jobs.NewLowStockScanTask(5)
	if err != nil {
		t.Fatalf("build scan task: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := scanJob.Handle(ctx, scanTask); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "storefront_jobs_total", map[string]string{"job": jobs.TaskTypeSendEmail, "status": "success"})
	failure := metricValue(t, families, "storefront_jobs_total", map[string]string{"job": jobs.TaskTypeSendEmail, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("mail job success ratio too low: %f", ratio)
	}
	if sent := metricValue(t, families, "storefront_mails_sent_total", map[string]string{"kind": jobs.MailOrderConfirmation}); sent != success {
		t.Fatalf("mails sent %f does not match successful jobs %f", sent, success)
	}

	if mean := histogramMean(t, families, "storefront_job_duration_seconds", map[string]string{"job": jobs.TaskLowStockScan}); mean > 2.0 {
		t.Fatalf("low stock scan duration above budget: %f", mean)
	}
	if mean := histogramMean(t, families, "storefront_job_duration_seconds", map[string]string{"job": jobs.TaskTypeSendEmail}); mean > 0.5 {
		t.Fatalf("mail duration above budget: %f", mean)
	}
	if gauge := metricValue(t, families, "storefront_low_stock_products", nil); gauge != 1 {
		t.Fatalf("low stock gauge = %f", gauge)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
