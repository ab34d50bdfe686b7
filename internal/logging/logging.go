package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// Setup installs the process-wide JSON logger. Every record carries the
// service name so log lines stay attributable when aggregated.
func Setup(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})

	slog.SetDefault(slog.New(handler).With("service", "cleansky"))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
