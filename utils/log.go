package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag value to a LogLevel. Unknown names fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

// logSink is shared by a logger and every component logger derived from it.
type logSink struct {
	mu       sync.Mutex
	minLevel LogLevel
	file     *os.File
	out      []io.Writer
}

// Logger writes timestamped, levelled lines to a file and/or stdout.
type Logger struct {
	sink      *logSink
	component string
}

// NewFileLogger appends to filePath, optionally echoing to stdout.
func NewFileLogger(filePath string, minLevel LogLevel, alsoStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	s := &logSink{minLevel: minLevel, file: f, out: []io.Writer{f}}
	if alsoStdout {
		s.out = append(s.out, os.Stdout)
	}
	return &Logger{sink: s}, nil
}

// NewWriterLogger logs to w only. Used for stdout-only runs and in tests.
func NewWriterLogger(w io.Writer, minLevel LogLevel) *Logger {
	return &Logger{sink: &logSink{minLevel: minLevel, out: []io.Writer{w}}}
}

// Named returns a logger tagging every line with component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{sink: l.sink, component: component}
}

func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		l.sink.out = l.sink.out[1:]
		return err
	}
	return nil
}

func (l *Logger) SetMinLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.minLevel = level
}

// Enabled reports whether level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return level >= l.sink.minLevel
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.sink.minLevel {
		return
	}

	ts := time.Now().Format(time.RFC3339Nano)
	var line string
	if l.component != "" {
		line = fmt.Sprintf("%s [%s] %s: %s\n", ts, level.String(), l.component, fmt.Sprintf(msg, args...))
	} else {
		line = fmt.Sprintf("%s [%s] %s\n", ts, level.String(), fmt.Sprintf(msg, args...))
	}

	for _, w := range l.sink.out {
		_, _ = io.WriteString(w, line)
	}
	if l.sink.file != nil {
		_ = l.sink.file.Sync()
	}
}

func (l *Logger) Trace(msg string, args ...any)    { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)    { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)     { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)     { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any)    { l.log(ERROR, msg, args...) }
func (l *Logger) Critical(msg string, args ...any) { l.log(CRITICAL, msg, args...) }
