// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation limits.
const (
	MaxSizeMB  = 50
	MaxBackups = 5
	MaxAgeDays = 30
)

// Options selects the logger output.
type Options struct {
	Level  string
	Format string // console or json
	File   string // optional rotating file, written in JSON
}

// Setup installs the global logger. The returned closer releases the log
// file, if any.
func Setup(opts Options, stderr io.Writer) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = stderr
	if opts.Format != "json" {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen, NoColor: !isTerminal(stderr)}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

// ParseLevel maps a config level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
