// Package log is the structured logger used across the module. It wraps zap
// behind a small interface so components take a Log and tests can pass Nop.
package log

import (
	"context"
	"time"
)

type Log interface {
	Log(level Level, msg string, fields ...Field)

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
	WithContext(ctx context.Context) Log

	SetLevel(level Level)
	GetLevel() Level
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Field struct {
	Key   string
	Type  FieldType
	Value any
}

// FieldType selects how Value is handed to the encoder.
type FieldType uint8

const (
	UnknownType FieldType = iota
	BoolType
	DurationType
	Float64Type
	IntType
	Int64Type
	StringType
	StringsType
	Uint64Type
	ErrorType
)

func Any(key string, val any) Field { return Field{Key: key, Type: UnknownType, Value: val} }

func Bool(key string, val bool) Field { return Field{Key: key, Type: BoolType, Value: val} }

func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Type: DurationType, Value: val}
}

func Float64(key string, val float64) Field { return Field{Key: key, Type: Float64Type, Value: val} }

func Int(key string, val int) Field { return Field{Key: key, Type: IntType, Value: val} }

func Int64(key string, val int64) Field { return Field{Key: key, Type: Int64Type, Value: val} }

func String(key string, val string) Field { return Field{Key: key, Type: StringType, Value: val} }

func Strings(key string, val []string) Field { return Field{Key: key, Type: StringsType, Value: val} }

func Uint64(key string, val uint64) Field { return Field{Key: key, Type: Uint64Type, Value: val} }

func Error(val error) Field { return ErrorWithKey("error", val) }

func ErrorWithKey(key string, val error) Field {
	return Field{Key: key, Type: ErrorType, Value: val}
}
