package observe

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LogObserver forwards messages to a charmbracelet logger.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver wraps an existing logger.
func NewLogObserver(logger *log.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Info logs at info level.
func (o *LogObserver) Info(msg string, keyvals ...interface{}) {
	o.logger.Info(msg, keyvals...)
}

// Warn logs at warn level.
func (o *LogObserver) Warn(msg string, keyvals ...interface{}) {
	o.logger.Warn(msg, keyvals...)
}

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is one of text, logfmt, json.
	Format string

	// Prefix is printed before every message.
	Prefix string
}

// NewLogger builds the console logger used by the CLI.
func NewLogger(w io.Writer, opts LoggerOptions) (*log.Logger, error) {
	if w == nil {
		w = io.Discard
	}
	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", opts.Level, err)
	}

	formatter := log.TextFormatter
	switch strings.ToLower(opts.Format) {
	case "", "text":
	case "logfmt":
		formatter = log.LogfmtFormatter
	case "json":
		formatter = log.JSONFormatter
	default:
		return nil, fmt.Errorf("unknown logging format %q", opts.Format)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	}), nil
}

var _ Observer = (*LogObserver)(nil)
