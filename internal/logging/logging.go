// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"audioedit/internal/config"
)

const FieldComponent = "component"

// Init installs the global logger described by cfg.
func Init(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = New(cfg, os.Stdout)
}

// New builds a logger writing to out in the configured format.
func New(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	var w io.Writer = out
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty", "":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str(FieldComponent, name).Logger()
}
