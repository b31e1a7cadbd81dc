// Package logging configures structured logging via log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging options.
type Config struct {
	// Level is the minimum level to emit.
	Level slog.Level
	// JSON switches output to the JSON handler (for production).
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns a development configuration. The LOG_LEVEL
// environment variable (DEBUG, INFO, WARN, ERROR) overrides the level;
// unset or unknown values mean INFO.
func DefaultConfig() Config {
	return Config{
		Level:  levelFromEnv(os.Getenv("LOG_LEVEL")),
		Output: os.Stderr,
	}
}

// ProductionConfig returns a JSON-output configuration at INFO level.
func ProductionConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		JSON:   true,
		Output: os.Stderr,
	}
}

func levelFromEnv(value string) slog.Level {
	switch strings.ToUpper(value) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
