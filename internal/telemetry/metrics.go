package telemetry

import (
	"context"

	"github.com/aaronromeo/sortpat/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aaronromeo/sortpat"

// RunMetrics records per-run counters.
type RunMetrics struct {
	runs     metric.Int64Counter
	messages metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRunMetrics registers the run instruments on provider. A nil provider
// uses the global one.
func NewRunMetrics(provider metric.MeterProvider) (*RunMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	runs, err := meter.Int64Counter("sortpat.runs",
		metric.WithDescription("Classification runs by final state"))
	if err != nil {
		return nil, err
	}
	messages, err := meter.Int64Counter("sortpat.messages",
		metric.WithDescription("Messages handled by outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("sortpat.run.duration",
		metric.WithDescription("Run wall time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &RunMetrics{runs: runs, messages: messages, duration: duration}, nil
}

// Record adds the counts from one finished run. Safe to call on a nil
// receiver.
func (m *RunMetrics) Record(ctx context.Context, summary model.RunSummary) {
	if m == nil {
		return
	}
	folder := attribute.String("folder", summary.Folder)
	m.runs.Add(ctx, 1, metric.WithAttributes(folder, attribute.String("state", string(summary.FinalState))))

	for outcome, n := range map[string]int{
		"scanned":  summary.Scanned,
		"labeled":  summary.Labeled,
		"archived": summary.Archived,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	} {
		if n == 0 {
			continue
		}
		m.messages.Add(ctx, int64(n), metric.WithAttributes(folder, attribute.String("outcome", outcome)))
	}

	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		elapsed := summary.FinishedAt.Sub(summary.StartedAt)
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(folder))
	}
}
