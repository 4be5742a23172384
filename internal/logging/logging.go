// Package logging builds the zerolog logger shared by the command and engines.
// Diagnostics always go to stderr so stdout stays reserved for result lines.
package logging

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ParseLevel maps a level name to zerolog. "off" disables logging; unknown
// names fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled", "none":
		return zerolog.Disabled
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to w at the given level. format "json" emits
// one JSON object per line; anything else uses the console writer.
func New(w io.Writer, level, format string) zerolog.Logger {
	out := w
	if strings.ToLower(strings.TrimSpace(format)) != FormatJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// LineWriter forwards complete lines written to it as debug events, tagged
// with the given source. Partial lines are held until the newline arrives.
type LineWriter struct {
	mu     sync.Mutex
	log    zerolog.Logger
	source string
	buf    []byte
}

// NewLineWriter returns a LineWriter logging through l.
func NewLineWriter(l zerolog.Logger, source string) *LineWriter {
	return &LineWriter{log: l, source: source}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(lw.buf[:idx]), "\r")
		if line != "" {
			lw.log.Debug().Str("source", lw.source).Msg(line)
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}
