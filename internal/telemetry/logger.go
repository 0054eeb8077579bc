package telemetry

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// NewLogger returns the process logger. With an OpenTelemetry log exporter
// records go through the otelslog bridge to the global logger provider;
// otherwise they are written as JSON to w.
func NewLogger(w io.Writer, cfg Config, verbose bool) *slog.Logger {
	switch cfg.LogExporter {
	case LogExporterStdout, LogExporterOTLP:
		return otelslog.NewLogger(cfg.ServiceName)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
