// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger at the given level. Unknown levels fall back to info.
// Output is human readable on a terminal and JSON everywhere else.
func Setup(level string) {
	SetupWithWriter(level, defaultWriter())
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	if err != nil {
		log.Warn().Str("component", "logging").Str("level", level).Msg("Unknown log level, using info")
	}
}

// For returns the global logger tagged with a component name.
func For(component string) *zerolog.Logger {
	l := log.Logger.With().Str("component", component).Logger()
	return &l
}

func defaultWriter() io.Writer {
	if info, err := os.Stderr.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stderr
}
