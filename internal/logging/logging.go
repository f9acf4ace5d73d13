// Package logging configures the zerolog root logger for the service.
//
// Components receive sub-loggers via constructor injection:
//
//	log := logging.New(cfg.LogLevel, cfg.LogFormat)
//	worker := pipeline.New(..., log.With().Str("component", "pipeline").Logger())
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Format is "console" for local runs and
// "json" for production. Unknown levels fall back to info.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
