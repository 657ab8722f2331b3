package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SetupLogger installs a JSON slog handler writing to w as the default logger.
// level is one of debug, info, warn, error; empty means info.
func SetupLogger(w io.Writer, level string) error {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			return fmt.Errorf("log level %q: %w", level, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})))

	return nil
}
