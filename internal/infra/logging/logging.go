package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to use JSON output at the given level.
// attrs are attached to every record, e.g. the service name.
func SetupJSON(level slog.Level, attrs ...slog.Attr) *slog.Logger {
	return setup(os.Stdout, level, attrs...)
}

func setup(w io.Writer, level slog.Level, attrs ...slog.Attr) *slog.Logger {
	var h slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if len(attrs) > 0 {
		h = h.WithAttrs(attrs)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// Err is the attribute every package uses to log an error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
