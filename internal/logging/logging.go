// Package logging wires up the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger. debug raises the level
// from Info to Debug, matching the `debug` config flag in spec section 6.
func New(debug bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
