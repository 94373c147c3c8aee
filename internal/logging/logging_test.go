package logging

import (
	"testing"
)

func TestLogLevelOrdering(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("log levels should ascend: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetLevelIsStable(t *testing.T) {
	// The level is resolved once per process; repeated reads agree.
	first := GetLevel()
	for i := 0; i < 3; i++ {
		if got := GetLevel(); got != first {
			t.Errorf("GetLevel() changed between calls: %v then %v", first, got)
		}
	}
	if IsDebugEnabled() != (first <= LevelDebug) {
		t.Error("IsDebugEnabled disagrees with GetLevel")
	}
}

func TestLoggingFunctionsDoNotPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"Debug", func() { Debug("scan pass %d complete", 1) }},
		{"Info", func() { Info("indexed %d files", 42) }},
		{"Warn", func() { Warn("preview generation failed for %s", "a.png") }},
		{"Error", func() { Error("database unavailable: %v", "timeout") }},
		{"Printf", func() { Printf("plain message") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("%s panicked: %v", tt.name, r)
				}
			}()
			tt.fn()
		})
	}
}
