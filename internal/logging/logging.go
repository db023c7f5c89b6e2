// Package logging configures the standard logger for the server.
//
// Messages go to stderr, since stdout carries the MCP protocol, and may be
// copied to a rotating log file. Each message is tagged with its level:
//
//	2026/01/02 15:04:05 export.go:88: INFO exported 1,365 tiles
//
// Messages below the configured level are dropped.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/natefinch/lumberjack"
)

// Level is a log severity.
type Level int32

// Log levels, lowest severity first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var levelNames = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("Level(%d)", int32(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name, ignoring case. "warn" is accepted for
// warning.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) { current.Store(int32(l)) }

// Enabled reports whether messages at l are written.
func Enabled(l Level) bool { return l >= Level(current.Load()) }

// Options configures Setup.
type Options struct {
	// Level is the minimum level name; empty means info.
	Level string

	// File, if set, receives a copy of every message and is rotated by
	// size.
	File string

	// MaxSize is the file size in megabytes before rotation.
	MaxSize int

	// MaxAge is the number of days to keep rotated files.
	MaxAge int

	// Writer replaces stderr as the primary destination.
	Writer io.Writer
}

// Setup configures the standard logger and returns a function that closes
// the log file, if any.
func Setup(opts Options) (func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	if opts.Writer != nil {
		out = opts.Writer
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		l := &lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  opts.MaxSize, // megabytes
			MaxAge:   opts.MaxAge,  // days
		}
		out = io.MultiWriter(out, l)
		closeFn = l.Close
	}

	log.SetOutput(out)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	SetLevel(level)
	return closeFn, nil
}

func logf(l Level, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Output(3, l.String()+" "+fmt.Sprintf(format, args...))
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warningf logs at warning level.
func Warningf(format string, args ...any) { logf(LevelWarning, format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
