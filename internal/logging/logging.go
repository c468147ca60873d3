// Package logging configures the shared zerolog.Logger used across every
// EchoVault subsystem. It replaces the teacher's bracketed
// fmt.Fprintf(os.Stderr, "[recall] ...") convention with structured,
// component-scoped logging, while keeping the same "never block on log
// output" spirit.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console-friendly zerolog.Logger writing to w (os.Stderr in
// production, a buffer in tests).
func New(w io.Writer, debug bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the owning subsystem, e.g.
// "extractor", "proxy", "vault". Mirrors the teacher's per-subsystem
// "[recall/acp]" prefixing.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
