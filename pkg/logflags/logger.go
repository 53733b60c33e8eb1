package logflags

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Logger represents a generic interface for logging inside of
// the debugger codebase.
type Logger interface {
	// WithField returns a new Logger enriched with the given field.
	WithField(key string, value interface{}) Logger
	// WithError returns a new Logger enriched with the given error.
	WithError(err error) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Fields type wraps many fields for Logger.
type Fields map[string]interface{}

type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{l.Entry.WithField(key, value)}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{l.Entry.WithError(err)}
}

func makeLogger(enabled bool, fields Fields) Logger {
	logger := logrus.New()
	logger.Formatter = &textFormatter{}
	if !enabled {
		logger.Level = logrus.PanicLevel
		logger.Out = io.Discard
	} else {
		logger.Level = logrus.DebugLevel
	}
	return &logrusLogger{logrus.NewEntry(logger).WithFields(logrus.Fields(fields))}
}

// textFormatter renders entries as "layer message key=value", without
// timestamps; debugger sessions are interactive and short.
type textFormatter struct{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var out []byte
	if layer, ok := entry.Data["layer"]; ok {
		out = append(out, fmt.Sprintf("%s ", layer)...)
	}
	out = append(out, entry.Message...)
	for k, v := range entry.Data {
		if k == "layer" {
			continue
		}
		out = append(out, fmt.Sprintf(" %s=%v", k, v)...)
	}
	out = append(out, '\n')
	return out, nil
}

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
