// Package logger wraps logrus with the fields used across a comparison run.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

// Options selects output, level and format. Zero values mean stderr, info
// and text.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logger. Unknown levels fall back to info.
func New(opt Options) *Logger {
	base := logrus.New()
	if strings.EqualFold(opt.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	out := opt.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opt.Level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	return New(Options{Output: io.Discard, Level: "panic"})
}

// NewRunID returns a fresh id for one analysis run.
func NewRunID() string { return uuid.New().String() }

// WithRun tags every entry with the run id.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Entry: l.Entry.WithField("run_id", runID)}
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
