// Package logging builds the zerolog logger shared by the application.
// Every line goes to the log file and to the session log relay.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pcli2rig/internal/logring"
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// FileName is the log file created inside the state directory.
const FileName = "pcli2-rig.log"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written to any sink.
	Level Level
	// Output receives JSON lines, normally the log file. May be nil.
	Output io.Writer
	// Relay receives a human-readable copy of every line. May be nil.
	Relay *logring.Relay
	// TimeFormat specifies the time format. Defaults to RFC3339.
	TimeFormat string
}

// New returns a logger writing to the configured sinks. With no sinks the
// logger discards everything.
func New(cfg Config) zerolog.Logger {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	var writers []io.Writer
	if cfg.Output != nil {
		writers = append(writers, cfg.Output)
	}
	if cfg.Relay != nil {
		writers = append(writers, NewRelayWriter(cfg.Relay))
	}
	if len(writers) == 0 {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel parses a log level string (case-insensitive).
// Supported values: DEBUG, INFO, WARN, ERROR.
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// OpenFile creates dir if needed and truncates the log file inside it. When
// the directory is not writable the file is created in os.TempDir instead.
// The returned path is the file actually opened.
func OpenFile(dir string) (*os.File, string, error) {
	if strings.TrimSpace(dir) != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			path := filepath.Join(dir, FileName)
			if f, err := os.Create(path); err == nil {
				return f, path, nil
			}
		}
	}
	path := filepath.Join(os.TempDir(), FileName)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create log file: %w", err)
	}
	return f, path, nil
}

// RelayWriter adapts a logring.Relay to zerolog. Each JSON event is rendered
// through a zerolog.ConsoleWriter without colour, time or level, and the level
// becomes the line severity.
type RelayWriter struct {
	relay   *logring.Relay
	mu      sync.Mutex
	buf     bytes.Buffer
	console zerolog.ConsoleWriter
}

// NewRelayWriter returns a zerolog.LevelWriter appending to relay.
func NewRelayWriter(relay *logring.Relay) *RelayWriter {
	w := &RelayWriter{relay: relay}
	w.console = zerolog.ConsoleWriter{
		Out:          &w.buf,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName},
	}
	return w
}

// Write implements io.Writer for events without a level.
func (w *RelayWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *RelayWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Reset()
	_, err := w.console.Write(p)
	text := w.buf.String()
	w.mu.Unlock()
	if err != nil {
		text = string(p)
	}
	w.relay.Append(SeverityOf(level), text)
	return len(p), nil
}

// SeverityOf maps a zerolog level to a relay severity.
func SeverityOf(level zerolog.Level) logring.Severity {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return logring.SeverityDebug
	case zerolog.WarnLevel:
		return logring.SeverityWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return logring.SeverityError
	default:
		return logring.SeverityInfo
	}
}
