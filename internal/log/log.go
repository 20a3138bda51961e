// Package log provides leveled, categorized logging for schemareg.
// Entries go to stderr unless Init points the logger at a file.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config value such as "warn" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Category groups related log messages.
type Category string

const (
	CatIngest       Category = "ingest"       // batch ingestion
	CatVersion      Category = "version"      // lineage and validity decisions
	CatRelationship Category = "relationship" // relationship resolution and persistence
	CatGraph        Category = "graph"        // tree materialization
	CatDB           Category = "db"           // database operations
	CatConfig       Category = "config"       // configuration loading
)

// Logger writes formatted entries to a writer.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	minLevel Level
	now      func() time.Time
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = &Logger{writer: os.Stderr, minLevel: LevelInfo, now: time.Now}
)

// Init points the global logger at path (stderr when empty) with the given
// minimum level. Returns a cleanup function closing the log file.
func Init(path string, level Level) (func(), error) {
	l := &Logger{writer: os.Stderr, minLevel: level, now: time.Now}
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		l.writer = f
	}

	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()

	return func() {
		if l.file != nil {
			_ = l.file.Close()
		}
	}, nil
}

// SetOutput redirects the global logger. Used by tests and the CLI.
func SetOutput(w io.Writer, level Level) {
	defaultMu.Lock()
	defaultLogger = &Logger{writer: w, minLevel: level, now: time.Now}
	defaultMu.Unlock()
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()

	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	write(LevelError, cat, msg, fields...)
}

// Log logs at a level named by string, as carried by log effects.
func Log(level string, cat Category, msg string, fields ...any) {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = LevelInfo
	}
	write(lvl, cat, msg, fields...)
}

func write(level Level, cat Category, msg string, fields ...any) {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel || l.writer == nil {
		return
	}

	// Format: 2026-01-02T10:45:00 [WARN] [relationship] message key=value key2=value2
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", l.now().Format("2006-01-02T15:04:05"), level, cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(l.writer, b.String())
}
