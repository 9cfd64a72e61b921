// Package logger carries a logrus entry through contexts so that pipeline
// stages log with the fields of the document they are working on.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Field names shared by every package that logs about documents.
const (
	FieldPath    = "path"
	FieldSection = "section"
	FieldLines   = "lines"
	FieldRun     = "run"
)

var (
	// G returns the logger carried by a context.
	G = GetLogger
	// L is the fallback entry used when a context carries none.
	L = logrus.NewEntry(newLogger())
)

type loggerKey struct{}

// WithLogger returns a context carrying entry.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry.WithContext(ctx))
}

// GetLogger returns the entry carried by ctx, or L.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

// WithFields returns a context whose logger has fields added.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, G(ctx).WithFields(fields))
}

// WithDocument returns a context whose logger is tagged with a document path.
func WithDocument(ctx context.Context, path string) context.Context {
	return WithFields(ctx, logrus.Fields{FieldPath: path})
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	setFormat(l, "fmt")
	return l
}

func setFormat(l *logrus.Logger, format string) {
	switch format {
	case "json":
		l.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		l.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	}
}

// SetLogLevel sets the level of the global logger.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	L.Logger.SetLevel(lvl)
	return nil
}

// SetLogFormat selects the json formatter, or the text formatter for any
// other value.
func SetLogFormat(format string) {
	setFormat(L.Logger, format)
}

// SetLogOutput redirects the global logger.
func SetLogOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}

// Configure applies a level and a format to the global logger.
func Configure(level, format string) error {
	if err := SetLogLevel(level); err != nil {
		return err
	}
	SetLogFormat(format)
	return nil
}
