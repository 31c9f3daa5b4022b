// SPDX-License-Identifier: MIT
//
// Package log is the levelled logger shared by every package. Messages below
// the global level are discarded before formatting.
//
// Packages with a fixed subsystem name log through a Component so every line
// carries the same prefix:
//
//	var logger = applog.Component("Pipeline")
//	logger.Debugf("Processed %d frames", n) // [DEBUG] Pipeline: Processed 3 frames
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String returns the upper-case name of the level, or UNKNOWN.
func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel converts a level name (case-insensitive, "warning" accepted) to
// a LogLevel. Unknown names yield LevelInfo and false.
func ParseLevel(levelStr string) (LogLevel, bool) {
	name := strings.ToUpper(levelStr)
	if name == "WARNING" {
		return LevelWarn, true
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

var (
	currentLevel atomic.Uint32
	logger       = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel returns the global logging level.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects log output, e.g. away from the terminal while a TUI
// owns it. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := logger.Writer()
	logger.SetOutput(w)
	return prev
}

func enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// output writes one line. Tags are padded to a common width so messages
// line up: "[INFO]  ..." next to "[DEBUG] ...".
func output(level LogLevel, prefix, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	line := fmt.Sprintf("%-7s %s", "["+level.String()+"]", msg)
	if level == LevelFatal {
		logger.Fatal(line)
	}
	logger.Print(line)
}

// Debugf logs at LevelDebug.
func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		output(LevelDebug, "", format, v...)
	}
}

// Infof logs at LevelInfo.
func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		output(LevelInfo, "", format, v...)
	}
}

// Warnf logs at LevelWarn.
func Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		output(LevelWarn, "", format, v...)
	}
}

// Errorf logs at LevelError.
func Errorf(format string, v ...any) {
	if enabled(LevelError) {
		output(LevelError, "", format, v...)
	}
}

// Fatalf logs regardless of the level and exits with status 1.
func Fatalf(format string, v ...any) {
	output(LevelFatal, "", format, v...)
}

// Component is a logger that prefixes every message with a subsystem name.
type Component string

// Debugf logs at LevelDebug.
func (c Component) Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		output(LevelDebug, string(c), format, v...)
	}
}

// Infof logs at LevelInfo.
func (c Component) Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		output(LevelInfo, string(c), format, v...)
	}
}

// Warnf logs at LevelWarn.
func (c Component) Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		output(LevelWarn, string(c), format, v...)
	}
}

// Errorf logs at LevelError.
func (c Component) Errorf(format string, v ...any) {
	if enabled(LevelError) {
		output(LevelError, string(c), format, v...)
	}
}
