// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mrsingh-rishi/articulate/config"
)

// Init configures the global zerolog logger and returns it tagged with the
// service name.
func Init(cfg config.LoggingConfig, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Logger()
	return log.Logger
}

// WithComponent returns a child logger with a component tag.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithUpload returns a logger carrying the identifiers of one upload.
func WithUpload(logger zerolog.Logger, sessionID, uploadID, file string) zerolog.Logger {
	return logger.With().
		Str("sessionId", sessionID).
		Str("uploadId", uploadID).
		Str("file", file).
		Logger()
}
