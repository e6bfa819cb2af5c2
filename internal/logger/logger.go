// Package logger is the process-wide leveled logger
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init resets the logger to its defaults: info level, text lines on stdout
func Init() {
	std.SetOutput(os.Stdout)
	std.SetLevel(logrus.InfoLevel)
	SetFormat("text")
}

// SetOutput sets the output for all levels
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetLevel sets the log level. Unknown levels fall back to info.
func SetLevel(levelStr string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	std.SetLevel(lvl)
}

// SetFormat switches between "text" and "json" lines
func SetFormat(format string) {
	if strings.EqualFold(format, "json") {
		std.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// IsDebug reports whether debug lines are emitted
func IsDebug() bool {
	return std.IsLevelEnabled(logrus.DebugLevel)
}

// WithField returns an entry carrying key=value on every line
func WithField(key string, value interface{}) *logrus.Entry {
	return std.WithField(key, value)
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	std.Infof(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	std.Errorf(format, v...)
}
