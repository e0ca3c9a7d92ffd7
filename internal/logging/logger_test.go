package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewHonoursLevel(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New("invoice-agent", "warn", format)
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		if log.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("%s logger emits info at warn level", format)
		}
		if !log.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("%s logger drops errors", format)
		}
	}
}
