package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	dev, err := New("debug")
	if err != nil {
		t.Fatalf("New(debug) failed: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("development logger should log debug")
	}
	Sync(dev)

	prod, err := New("release")
	if err != nil {
		t.Fatalf("New(release) failed: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("release logger should not log debug")
	}
	if !prod.Core().Enabled(zapcore.InfoLevel) {
		t.Error("release logger should log info")
	}

	Sync(nil)
}
