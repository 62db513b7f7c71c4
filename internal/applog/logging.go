package applog

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

var stdoutLogFormat = logging.MustStringFormatter(
	`%{color:reset}%{color}%{time:2006-01-02 15:04:05.000} [%{level}] [%{module}/%{shortfunc}] %{message}`,
)

var fileLogFormat = logging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} [%{level}] [%{module}/%{shortfunc}] %{message}`,
)

type Options struct {
	Level   string
	File    string
	Verbose bool
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// Setup installs the process-wide backends. It returns a closer for the log
// file, which is a no-op when no file is configured.
func Setup(opts Options) io.Closer {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	backendStdout := logging.NewLogBackend(out, "", 0)
	backends := []logging.Backend{logging.NewBackendFormatter(backendStdout, stdoutLogFormat)}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		w := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		backendFile := logging.NewLogBackend(w, "", 0)
		backends = append(backends, logging.NewBackendFormatter(backendFile, fileLogFormat))
		closer = w
	}
	logging.SetBackend(backends...)

	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = logging.DEBUG
	}
	logging.SetLevel(level, "")
	return closer
}

// ParseLevel maps a level name to a go-logging level, defaulting to INFO.
func ParseLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.DEBUG
	case "info":
		return logging.INFO
	case "notice":
		return logging.NOTICE
	case "warning":
		return logging.WARNING
	case "error":
		return logging.ERROR
	case "critical":
		return logging.CRITICAL
	default:
		return logging.INFO
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
