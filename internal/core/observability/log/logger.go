package log

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

var (
	processLogger *Logger
	processOnce   sync.Once
)

// Format selects the zap encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

type options struct {
	format  Format
	outputs []string
}

type Option func(*options)

// WithFormat picks JSON (default) or human readable console output.
func WithFormat(f Format) Option { return func(o *options) { o.format = f } }

// WithOutputs replaces the default stderr sink with zap output paths.
func WithOutputs(paths ...string) Option { return func(o *options) { o.outputs = paths } }

type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// New builds a logger. The first logger built becomes the one returned by
// Provide.
func New(level Level, opts ...Option) *Logger {
	o := options{format: FormatJSON, outputs: []string{"stderr"}}
	for _, opt := range opts {
		opt(&o)
	}

	lvl := zap.NewAtomicLevelAt(level.zap())
	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	if o.format == FormatConsole {
		encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	built, err := zap.Config{
		Level:            lvl,
		Sampling:         &zap.SamplingConfig{Initial: 100, Thereafter: 100},
		Encoding:         string(o.format),
		EncoderConfig:    encoder,
		OutputPaths:      o.outputs,
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}.Build()
	if err != nil {
		panic(err)
	}

	l := &Logger{zap: built, level: lvl}
	processOnce.Do(func() { processLogger = l })
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zap.FatalLevel)}
}

// Provide returns the process logger, or a no-op one if New was never called.
func Provide() *Logger {
	if processLogger == nil {
		return Nop()
	}
	return processLogger
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.zap.Sync() }

func (l *Logger) Log(level Level, msg string, fields ...Field) {
	l.zap.Log(level.zap(), msg, zapFields(fields)...)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, zapFields(fields)...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, zapFields(fields)...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, zapFields(fields)...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, zapFields(fields)...) }

// With returns a child logger. Children share the parent's level.
func (l *Logger) With(fields ...Field) Log {
	if len(fields) == 0 {
		return l
	}
	return &Logger{zap: l.zap.With(zapFields(fields)...), level: l.level}
}

// WithContext adds the fields stored in ctx by ContextWithFields.
func (l *Logger) WithContext(ctx context.Context) Log {
	return l.With(FieldsFromContext(ctx)...)
}

func (l *Logger) SetLevel(level Level) { l.level.SetLevel(level.zap()) }

func (l *Logger) GetLevel() Level { return levelOf(l.level.Level()) }

type ctxKey struct{}

// ContextWithFields returns a context carrying fields for WithContext, after
// any fields ctx already carries.
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	prev := FieldsFromContext(ctx)
	all := make([]Field, 0, len(prev)+len(fields))
	return context.WithValue(ctx, ctxKey{}, append(append(all, prev...), fields...))
}

func FieldsFromContext(ctx context.Context) []Field {
	fields, _ := ctx.Value(ctxKey{}).([]Field)
	return fields
}

func (level Level) zap() zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func levelOf(level zapcore.Level) Level {
	switch {
	case level <= zap.DebugLevel:
		return LevelDebug
	case level == zap.InfoLevel:
		return LevelInfo
	case level == zap.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}

func (f Field) zap() zap.Field {
	switch f.Type {
	case BoolType:
		return zap.Bool(f.Key, f.Value.(bool))
	case DurationType:
		return zap.Duration(f.Key, f.Value.(time.Duration))
	case Float64Type:
		return zap.Float64(f.Key, f.Value.(float64))
	case IntType:
		return zap.Int(f.Key, f.Value.(int))
	case Int64Type:
		return zap.Int64(f.Key, f.Value.(int64))
	case StringType:
		return zap.String(f.Key, f.Value.(string))
	case StringsType:
		return zap.Strings(f.Key, f.Value.([]string))
	case Uint64Type:
		return zap.Uint64(f.Key, f.Value.(uint64))
	case ErrorType:
		err, _ := f.Value.(error)
		return zap.NamedError(f.Key, err)
	default:
		return zap.Any(f.Key, f.Value)
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = f.zap()
	}
	return out
}
