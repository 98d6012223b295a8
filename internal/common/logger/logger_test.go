package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestZapAdapter_FieldsAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).With(map[string]interface{}{"taskType": "run-supervisor"})

	log.Info("query classified", map[string]interface{}{
		"intent": "factual",
		"cause":  errors.New("boom"),
	})
	log.WithError(errors.New("timeout")).Warn("specialist degraded", nil)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "run-supervisor", ctx["taskType"])
		assert.Equal(t, "factual", ctx["intent"])
		assert.Equal(t, "boom", ctx["cause"])

		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, "timeout", entries[1].ContextMap()["error"])
	}
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Debug("nothing", nil)
		log.With(nil).Error("still nothing", map[string]interface{}{"k": 1})
	})
}
