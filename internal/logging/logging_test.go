package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo, true)
	defer Init(slog.LevelInfo, false)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCollectorID(ctx, 7)

	WithContext(ctx).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Unmarshal: %v (%q)", err, buf.String())
	}
	if line["request_id"] != "req-1" {
		t.Errorf("request_id = %v", line["request_id"])
	}
	if line["collector_id"] != float64(7) {
		t.Errorf("collector_id = %v", line["collector_id"])
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo, true)
	defer Init(slog.LevelInfo, false)

	Component("export").Debug("dropped")
	if buf.Len() != 0 {
		t.Errorf("debug line should be filtered at info level: %q", buf.String())
	}

	Component("export").Info("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if line["component"] != "export" {
		t.Errorf("component = %v", line["component"])
	}
}

func TestComponentFollowsInit(t *testing.T) {
	early := Component("store")

	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug, true)
	defer Init(slog.LevelInfo, false)

	early.Debug("after init", "table", "collector_record")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Unmarshal: %v (%q)", err, buf.String())
	}
	if line["component"] != "store" || line["table"] != "collector_record" {
		t.Errorf("line = %v", line)
	}
}
