package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{zap: zap.New(core), level: zap.NewAtomicLevelAt(zap.DebugLevel)}

	l.With(String("component", "env")).Info("episode end",
		Int("steps", 12),
		Float64("return", 1.5),
		Strings("agents", []string{"player_0"}),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "env", ctx["component"])
		assert.Equal(t, int64(12), ctx["steps"])
		assert.Equal(t, 1.5, ctx["return"])
		assert.Equal(t, "boom", ctx["error"])
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestSetLevel(t *testing.T) {
	l := Nop()
	l.SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, l.GetLevel())
	child := l.With(String("k", "v"))
	assert.Equal(t, LevelWarn, child.GetLevel())
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{zap: zap.New(core), level: zap.NewAtomicLevelAt(zap.DebugLevel)}

	ctx := ContextWithFields(context.Background(), String("request_id", "r-1"))
	ctx = ContextWithFields(ctx, String("instance", "env-1"))
	l.WithContext(ctx).Warn("step failed")
	l.WithContext(context.Background()).Info("plain")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, map[string]any{"request_id": "r-1", "instance": "env-1"}, entries[0].ContextMap())
		assert.Empty(t, entries[1].ContextMap())
	}
}
