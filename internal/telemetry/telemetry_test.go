package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRunMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewRunMetrics(provider)
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.Record(context.Background(), model.RunSummary{
		Folder:     "INBOX",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Scanned:    3,
		Labeled:    2,
		Archived:   2,
		FinalState: model.StateDone,
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}

	runs, ok := byName["sortpat.runs"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(1), runs.DataPoints[0].Value)

	messages, ok := byName["sortpat.messages"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range messages.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(7), total)

	duration, ok := byName["sortpat.run.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, 2.0, duration.DataPoints[0].Sum)
}

func TestRunMetricsNilReceiver(t *testing.T) {
	var m *RunMetrics
	assert.NotPanics(t, func() { m.Record(context.Background(), model.RunSummary{}) })
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, Config{ServiceName: "sortpat", LogExporter: LogExporterJSON}, false)

	logger.Debug("hidden")
	logger.Info("visible", "uid", 7)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"visible"`)
	assert.Contains(t, buf.String(), `"uid":7`)
}

func TestNewLoggerVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, Config{LogExporter: LogExporterJSON}, true)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupWithoutDSN(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "sortpat", LogExporter: LogExporterJSON})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupOTLPLogsRequireDSN(t *testing.T) {
	_, err := Setup(context.Background(), Config{ServiceName: "sortpat", LogExporter: LogExporterOTLP})
	assert.ErrorIs(t, err, ErrDSNRequired)
}
