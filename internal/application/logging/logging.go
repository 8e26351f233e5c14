// ABOUTME: Structured logger construction from the logging config block
// ABOUTME: Maps level names onto slog levels and picks a text or JSON handler
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/harper/rpitx-bridge/internal/application/config"
)

// New builds a logger writing to w. Level "none" discards everything.
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	opts := slog.HandlerOptions{}

	switch cfg.Level {
	case "none":
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	case "error":
		opts.Level = slog.LevelError
	case "warn":
		opts.Level = slog.LevelWarn
	case "info", "":
		opts.Level = slog.LevelInfo
	case "debug":
		opts.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unexpected log level %q", cfg.Level)
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, &opts)
	} else {
		handler = slog.NewTextHandler(w, &opts)
	}
	return slog.New(handler), nil
}

// Configure builds a logger with New and installs it as the slog default.
func Configure(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	logger, err := New(cfg, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
