// Package logging configures the process-wide zerolog logger exactly once
// at startup and hands it out by value to every component constructor
// rather than relying on a package global.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New builds a Logger at the given level ("debug", "info", "warn", "error").
// Output is a human-readable console writer when stderr is a terminal, and
// plain JSON lines otherwise (e.g. under systemd or in a container).
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return logger.Level(lvl)
}
