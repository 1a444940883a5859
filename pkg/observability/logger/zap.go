package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum severity written by a logger.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

var zapLevels = map[LogLevel]zapcore.Level{
	DebugLevel: zapcore.DebugLevel,
	InfoLevel:  zapcore.InfoLevel,
	WarnLevel:  zapcore.WarnLevel,
	ErrorLevel: zapcore.ErrorLevel,
}

// LogFormat selects the encoder: one JSON object per line, or zap's console layout.
type LogFormat string

const (
	JSONFormat LogFormat = "json"
	TextFormat LogFormat = "text"
)

// Config holds configuration for the logger.
type Config struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stdout.
	Output io.Writer
	// Fields are attached to every entry, e.g. service name and environment.
	Fields []any
}

// DefaultConfig logs info and above as JSON.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Format: JSONFormat}
}

// ZapLogger implements Logger on top of a sugared zap logger.
// Children created with With share the parent's level.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger builds a logger from cfg. Unknown levels fall back to info and
// unknown formats to text.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	level, err := ParseLogLevel(string(cfg.Level))
	if err != nil {
		level = InfoLevel
	}
	atomic := zap.NewAtomicLevelAt(zapLevels[level])

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(out), atomic)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	sugar := base.Sugar()
	if len(cfg.Fields) > 0 {
		sugar = sugar.With(cfg.Fields...)
	}
	return &ZapLogger{base: base, sugar: sugar, level: atomic}, nil
}

func newEncoder(format LogFormat) zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	if parsed, err := ParseLogFormat(string(format)); err == nil && parsed == JSONFormat {
		return zapcore.NewJSONEncoder(enc)
	}
	return zapcore.NewConsoleEncoder(enc)
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// With returns a child logger that adds args to every entry.
func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{base: l.base, sugar: l.sugar.With(args...), level: l.level}
}

// WithContext tags entries with the request ID and the active trace carried by ctx.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	var fields []any
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// SetLevel changes the minimum level of this logger and every logger derived from it.
func (l *ZapLogger) SetLevel(level LogLevel) error {
	parsed, err := ParseLogLevel(string(level))
	if err != nil {
		return err
	}
	l.level.SetLevel(zapLevels[parsed])
	return nil
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

// ParseLogLevel accepts the level names case-insensitively, plus "warning".
func ParseLogLevel(level string) (LogLevel, error) {
	normalized := LogLevel(strings.ToLower(strings.TrimSpace(level)))
	if normalized == "warning" {
		return WarnLevel, nil
	}
	if _, ok := zapLevels[normalized]; !ok {
		return "", fmt.Errorf("invalid log level: %s", level)
	}
	return normalized, nil
}

// ParseLogFormat accepts "json", "text" and its alias "console".
func ParseLogFormat(format string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(format))) {
	case JSONFormat:
		return JSONFormat, nil
	case TextFormat, "console":
		return TextFormat, nil
	default:
		return "", fmt.Errorf("invalid log format: %s", format)
	}
}
