// internal/logging/logging.go
package logging

import (
	"io"
	"os"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets a console writer, everything else JSON.
func New(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, cfg.LogLevel).With().Str("service", "senso-insights").Logger()
}

// NewWithWriter is New without the environment switch
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component derives a child logger tagged with the component name
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
