package common

import (
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"verbose", logger.INFO, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	l := CreateLogger("test").(*objLogger)
	l.SetLevel(logger.WARNING)
	if l.enabled(logger.INFO) {
		t.Errorf("info should be filtered at warning level")
	}
	if !l.enabled(logger.ERROR) {
		t.Errorf("error should pass at warning level")
	}
	l.SetLevel(logger.DEBUG)
	if !l.enabled(logger.DEBUG) {
		t.Errorf("debug should pass at debug level")
	}
}
