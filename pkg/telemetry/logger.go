package telemetry

import (
	"log/slog"
	"os"
)

// InitLogger installs a JSON slog logger as the default.
func InitLogger() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
