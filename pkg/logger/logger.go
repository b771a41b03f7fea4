package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus logger
type Logger struct {
	*logrus.Logger
	service string
}

// NewLogger creates a JSON logger for the named service. The level is read
// from LOG_LEVEL and defaults to info.
func NewLogger(serviceName string) *Logger {
	return newLogger(serviceName, os.Getenv("LOG_LEVEL"), os.Stdout)
}

// NewWithLevel is NewLogger with an explicit level, used when the level comes
// from loaded configuration rather than the raw environment.
func NewWithLevel(serviceName, level string) *Logger {
	return newLogger(serviceName, level, os.Stdout)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return newLogger("test", "error", io.Discard)
}

func newLogger(serviceName, level string, out io.Writer) *Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)
	log.SetLevel(parseLevel(level))

	return &Logger{Logger: log, service: serviceName}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Service returns an entry tagged with the service name. All component loggers
// should start from here.
func (l *Logger) Service() *logrus.Entry {
	return l.WithField("service", l.service)
}

// WithContest tags an entry with a contest id.
func (l *Logger) WithContest(contestID string) *logrus.Entry {
	return l.Service().WithField("contest_id", contestID)
}

// WithRequestID adds request ID to logger
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.Service().WithField("request_id", requestID)
}
