// Package logging configures the global zerolog logger. It is initialized
// before any package that derives a component logger from it.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// switchWriter lets the destination change after component loggers have
// captured the writer.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var output = &switchWriter{w: os.Stderr}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339})
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// SetOutput redirects every logger, e.g. to a file while a TUI owns the
// terminal.
func SetOutput(w io.Writer) {
	output.mu.Lock()
	output.w = w
	output.mu.Unlock()
}

// SetLevel sets the global level; unknown names fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("Invalid log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
