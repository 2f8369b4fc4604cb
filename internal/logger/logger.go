// Package logger provides a level-gated logger with two sinks: plain
// stdout lines for interactive use and systemd-style priority-prefixed
// lines for journald (selected with --log stdout|systemd).
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelTrace = "trace"
)

// Sink selects the output format.
type Sink string

const (
	SinkStdout  Sink = "stdout"
	SinkSystemd Sink = "systemd"
)

// systemdPrefix maps a level to its sd-daemon syslog priority prefix.
// <2> crit, <3> err, <4> warning, <6> info, <7> debug.
var systemdPrefix = map[string]string{
	LevelError: "<3>",
	LevelWarn:  "<4>",
	LevelInfo:  "<6>",
	LevelDebug: "<7>",
	LevelTrace: "<7>",
}

var levelOrder = []string{LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace}

// Config controls verbosity and sink selection.
type Config struct {
	Level string
	Sink  Sink
}

// Logger is the daemon's single logger instance, gated by level.
type Logger struct {
	out   *log.Logger
	level string
	sink  Sink
}

var global *Logger

// New builds a logger writing to stdout in the given sink format.
func New(cfg Config) *Logger {
	level := strings.ToLower(cfg.Level)
	if level == "" {
		level = LevelInfo
	}
	sink := cfg.Sink
	if sink == "" {
		sink = SinkStdout
	}
	l := &Logger{
		out:   log.New(os.Stdout, "", 0),
		level: level,
		sink:  sink,
	}
	global = l
	return l
}

func shouldLog(current, message string) bool {
	ci, mi := -1, -1
	for i, lvl := range levelOrder {
		if lvl == current {
			ci = i
		}
		if lvl == message {
			mi = i
		}
	}
	if ci == -1 || mi == -1 {
		return true
	}
	return mi <= ci
}

func (l *Logger) line(level, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if l.sink == SinkSystemd {
		return systemdPrefix[level] + msg
	}
	return strings.ToUpper(level) + ": " + msg
}

func (l *Logger) Error(format string, args ...interface{}) {
	if shouldLog(l.level, LevelError) {
		l.out.Print(l.line(LevelError, format, args...))
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if shouldLog(l.level, LevelWarn) {
		l.out.Print(l.line(LevelWarn, format, args...))
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if shouldLog(l.level, LevelInfo) {
		l.out.Print(l.line(LevelInfo, format, args...))
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if shouldLog(l.level, LevelDebug) {
		l.out.Print(l.line(LevelDebug, format, args...))
	}
}

func (l *Logger) Trace(format string, args ...interface{}) {
	if shouldLog(l.level, LevelTrace) {
		l.out.Print(l.line(LevelTrace, format, args...))
	}
}

// VerbosityToLevel converts the -v/-vv/-vvv count from the CLI into a level.
func VerbosityToLevel(count int) string {
	switch {
	case count >= 3:
		return LevelTrace
	case count == 2:
		return LevelDebug
	case count == 1:
		return LevelInfo
	default:
		return LevelWarn
	}
}

// Package-level helpers delegate to the last logger built by New, matching
// the call sites that run before a component holds its own *Logger handle.

func LogError(format string, args ...interface{}) {
	if global != nil {
		global.Error(format, args...)
	}
}

func LogWarn(format string, args ...interface{}) {
	if global != nil {
		global.Warn(format, args...)
	}
}

func LogInfo(format string, args ...interface{}) {
	if global != nil {
		global.Info(format, args...)
	}
}

func LogDebug(format string, args ...interface{}) {
	if global != nil {
		global.Debug(format, args...)
	}
}

func LogTrace(format string, args ...interface{}) {
	if global != nil {
		global.Trace(format, args...)
	}
}
