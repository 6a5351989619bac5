package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitParsesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	Init()

	core := log.Desugar().Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn not enabled at warn level")
	}
}

func TestInitDefaultsToInfoOnBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "nonsense")
	Init()

	core := log.Desugar().Core()
	if core.Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled by default")
	}
	if !core.Enabled(zapcore.InfoLevel) {
		t.Error("info not enabled by default")
	}
}
