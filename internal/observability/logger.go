package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide JSON logger. Debug level in dev,
// info otherwise; every record carries the service name and, when a
// span is active on the context, its trace/span ids.
func NewLogger(service, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler)).With(
		slog.String("service", service),
		slog.String("env", env),
	)
}
