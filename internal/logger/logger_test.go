package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name      string
		json      bool
		debug     bool
		wantDebug bool
	}{
		{name: "console info", wantDebug: false},
		{name: "json debug", json: true, debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.json, tt.debug, zap.String("version", "test"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Fatalf("expected debug enabled %v, got %v", tt.wantDebug, got)
			}
		})
	}
}
