package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
	}{
		{"debug level", "debug", true},
		{"info level", "info", false},
		{"invalid falls back to info", "chatty", false},
		{"empty falls back to info", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level)
			logger.Debug().Msg("debug line")
			if got := buf.Len() > 0; got != tt.wantDebug {
				t.Errorf("debug emitted = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "info"), "authority-queue")
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["component"] != "authority-queue" {
		t.Errorf("component = %v, want authority-queue", entry["component"])
	}
}
