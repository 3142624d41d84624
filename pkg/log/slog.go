package log

import (
	"io"
	"log/slog"
	"os"
)

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Str creates a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Any creates a field holding an arbitrary value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err creates an "error" field.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Component creates the conventional "component" field.
func Component(name string) Field { return Field{Key: "component", Value: name} }

// LoggerOption configures a logger under construction.
type LoggerOption func(*options)

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(o *options) { o.level = level }
}

// WithFormat sets the output encoding.
func WithFormat(format Format) LoggerOption {
	return func(o *options) { o.format = format }
}

// WithOutput sets the destination writer. Defaults to stderr.
func WithOutput(w io.Writer) LoggerOption {
	return func(o *options) { o.out = w }
}

// baseLogger implements Logger on top of slog.
type baseLogger struct {
	sl    *slog.Logger
	level *slog.LevelVar
}

// NewLogger creates a logger with the given options.
func NewLogger(opts ...LoggerOption) Logger {
	o := options{level: InfoLevel, format: TextFormat, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	lv := new(slog.LevelVar)
	lv.Set(toSlogLevel(o.level))
	hopts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if o.format == JSONFormat {
		h = slog.NewJSONHandler(o.out, hopts)
	} else {
		h = slog.NewTextHandler(o.out, hopts)
	}
	return &baseLogger{sl: slog.New(h), level: lv}
}

// NewNopLogger creates a logger that discards everything. Intended for tests.
func NewNopLogger() Logger {
	return NewLogger(WithOutput(io.Discard), WithLevel(FatalLevel))
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.sl.Debug(msg, args(fields)...) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.sl.Info(msg, args(fields)...) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.sl.Warn(msg, args(fields)...) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.sl.Error(msg, args(fields)...) }

func (l *baseLogger) Fatal(msg string, fields ...Field) {
	l.sl.Error(msg, args(fields)...)
	os.Exit(1)
}

func (l *baseLogger) With(fields ...Field) Logger {
	return &baseLogger{sl: l.sl.With(args(fields)...), level: l.level}
}

func (l *baseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

func (l *baseLogger) SetLevel(level Level) { l.level.Set(toSlogLevel(level)) }

func args(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
