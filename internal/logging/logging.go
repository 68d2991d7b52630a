package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	disabled = false
	logger   = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Disable turns off all logging
func Disable() {
	disabled = true
}

// Enable turns logging back on
func Enable() {
	disabled = false
}

// SetOutput redirects log output (stderr by default).
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel parses and applies a level name ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// Info logs an info message
func Info(v ...any) {
	if !disabled {
		logger.Info(v...)
	}
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled {
		logger.Infof(format, v...)
	}
}

// Error logs an error message
func Error(v ...any) {
	if !disabled {
		logger.Error(v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled {
		logger.Errorf(format, v...)
	}
}

// Warn logs a warning message
func Warn(v ...any) {
	if !disabled {
		logger.Warn(v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled {
		logger.Warnf(format, v...)
	}
}

// Debug logs a debug message
func Debug(v ...any) {
	if !disabled {
		logger.Debug(v...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if !disabled {
		logger.Debugf(format, v...)
	}
}

// Logger is a field-scoped logger that can be embedded in structs
type Logger struct {
	entry *logrus.Entry
}

// WithComponent creates a Logger tagged with a component field.
func WithComponent(name string) Logger {
	return Logger{entry: logger.WithField("component", name)}
}

// Info logs an info message
func (l Logger) Info(v ...any) {
	if !disabled {
		l.entry.Info(v...)
	}
}

// Infof logs a formatted info message
func (l Logger) Infof(format string, v ...any) {
	if !disabled {
		l.entry.Infof(format, v...)
	}
}

// Debugf logs a formatted debug message
func (l Logger) Debugf(format string, v ...any) {
	if !disabled {
		l.entry.Debugf(format, v...)
	}
}

// Warnf logs a formatted warning message
func (l Logger) Warnf(format string, v ...any) {
	if !disabled {
		l.entry.Warnf(format, v...)
	}
}

// Error logs an error message
func (l Logger) Error(v ...any) {
	if !disabled {
		l.entry.Error(v...)
	}
}

// Errorf logs a formatted error message
func (l Logger) Errorf(format string, v ...any) {
	if !disabled {
		l.entry.Errorf(format, v...)
	}
}
