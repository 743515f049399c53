// Package logging builds the zerolog logger shared by the CLI and the
// device layers.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w. format is "console" (human readable,
// the default) or "json". level is a zerolog level name.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(strings.ToLower(level)); err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: %w", err)
		}
	}

	switch strings.ToLower(format) {
	case "", "console":
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.TimeOnly,
		}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Verbose lowers level to debug when verbose is set.
func Verbose(level string, verbose bool) string {
	if verbose {
		return zerolog.DebugLevel.String()
	}
	return level
}
