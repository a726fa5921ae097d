// Package logging provides a thin leveled wrapper around the standard
// library's log.Logger, matching the ambient logging style of the rest of
// the stack: one *log.Logger per component, no package-level globals.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses one of the CLI's accepted level names. Unrecognized
// input falls back to LevelError, matching the CLI default.
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelError
	}
}

// Logger wraps *log.Logger with a level filter and a component prefix.
type Logger struct {
	out   *log.Logger
	level Level
	name  string
}

// New creates a Logger writing to w, filtered at level, prefixed with name.
func New(w io.Writer, level Level, name string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		out:   log.New(w, "", log.LstdFlags),
		level: level,
		name:  name,
	}
}

// Named returns a child logger sharing the same sink and level but with a
// more specific component name, e.g. l.Named("graph").
func (l *Logger) Named(name string) *Logger {
	return &Logger{out: l.out, level: l.level, name: name}
}

func (l *Logger) log(level Level, tag, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s] %s %s", l.name, tag, msg)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, "WARN", format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, "ERROR", format, args...) }
