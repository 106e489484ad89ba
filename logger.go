package bayeux

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger defines the logging interface bayeux leverages
type Logger interface {
	// Debug takes a message and any number of arguments and logs them at the
	// debug level
	Debug(msg string, args ...any)

	// Info takes a message and any number of arguments and logs them at the
	// info level
	Info(msg string, args ...any)

	// Warn takes a message and any number of arguments and logs them at the
	// warn level
	Warn(msg string, args ...any)

	// Error takes a message and any number of arguments and logs them at the
	// error level
	Error(msg string, args ...any)

	// WithError returns a new Logger that adds the given error to any log
	// messages emitted
	WithError(error) Logger

	// WithField returns a new Logger that adds the given key/value to any
	// log messages emitted
	WithField(key string, value any) Logger
}

type nullLogger struct {
}

func (*nullLogger) Debug(msg string, args ...any) {
}

func (*nullLogger) Info(msg string, args ...any) {
}

func (*nullLogger) Warn(msg string, args ...any) {
}

func (*nullLogger) Error(msg string, args ...any) {
}

func (l *nullLogger) WithError(err error) Logger {
	return l
}

func (l *nullLogger) WithField(key string, value any) Logger {
	return l
}

func newNullLogger() *nullLogger {
	return &nullLogger{}
}

type wrappedFieldLogger struct {
	logrus.FieldLogger
}

func (w *wrappedFieldLogger) Debug(msg string, args ...any) {
	w.withArgs(args).Debug(msg)
}

func (w *wrappedFieldLogger) Info(msg string, args ...any) {
	w.withArgs(args).Info(msg)
}

func (w *wrappedFieldLogger) Warn(msg string, args ...any) {
	w.withArgs(args).Warn(msg)
}

func (w *wrappedFieldLogger) Error(msg string, args ...any) {
	w.withArgs(args).Error(msg)
}

// withArgs folds alternating key/value arguments into logrus fields so they
// render the same way slog renders them. A trailing unpaired argument is
// ignored.
func (w *wrappedFieldLogger) withArgs(args []any) logrus.FieldLogger {
	logger := w.FieldLogger
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		logger = logger.WithField(key, args[i+1])
	}
	return logger
}

func (w *wrappedFieldLogger) WithError(err error) Logger {
	return &wrappedFieldLogger{w.FieldLogger.WithError(err)}
}

func (w *wrappedFieldLogger) WithField(key string, value any) Logger {
	return &wrappedFieldLogger{w.FieldLogger.WithField(key, value)}
}

// WithFieldLogger configures the client to log through an existing logrus
// logger
func WithFieldLogger(logger logrus.FieldLogger) Option {
	return func(options *Options) {
		options.Logger = &wrappedFieldLogger{logger}
	}
}
