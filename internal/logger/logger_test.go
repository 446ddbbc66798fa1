package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	_ = Init(Options{})
}

// --- Init Tests ---

func TestInit_DefaultLevel_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Output: buf})
	defer resetLogger()

	Info("test info")
	if !strings.Contains(buf.String(), "test info") {
		t.Error("Info message should be logged at default level")
	}

	buf.Reset()

	Debug("test debug")
	if strings.Contains(buf.String(), "test debug") {
		t.Error("Debug message should not be logged at default level")
	}
}

func TestInit_DebugLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	Debug("test debug message")
	if !strings.Contains(buf.String(), "test debug message") {
		t.Error("Debug message should be logged when Debug=true")
	}
}

func TestInit_QuietLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Quiet: true, Output: buf})
	defer resetLogger()

	Info("test info")
	Warn("test warn")
	Error("test error")

	output := buf.String()
	if strings.Contains(output, "test info") || strings.Contains(output, "test warn") {
		t.Error("only errors should be logged when Quiet=true")
	}
	if !strings.Contains(output, "test error") {
		t.Error("Error message should be logged when Quiet=true")
	}
}

func TestInit_ExplicitLevelOverridesFlags(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Init(Options{Quiet: true, Level: "warn", Output: buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer resetLogger()

	Info("hidden")
	Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info should not be logged at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Warn should be logged at warn level")
	}
}

func TestInit_UnknownLevel(t *testing.T) {
	defer resetLogger()
	if err := Init(Options{Level: "loud"}); err == nil {
		t.Fatal("Init() expected error for unknown level")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("test message", "file", "study.pdf")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("JSON output did not parse: %v (%q)", err, buf.String())
	}
	if record["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", record["msg"], "test message")
	}
	if record["file"] != "study.pdf" {
		t.Errorf("file = %v, want %q", record["file"], "study.pdf")
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := slog.New(slog.NewTextHandler(buf, nil))
	_ = Init(Options{Logger: custom, Quiet: true})
	defer resetLogger()

	Info("from custom")
	if !strings.Contains(buf.String(), "from custom") {
		t.Error("custom logger should receive records regardless of Quiet")
	}
}

// --- ParseLevel Tests ---

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// --- With / Component Tests ---

func TestWith_ReturnsLoggerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Output: buf})
	defer resetLogger()

	With("key", "value").Info("test with attrs")

	output := buf.String()
	if !strings.Contains(output, "test with attrs") {
		t.Error("expected message in output")
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected attributes in output, got %q", output)
	}
}

func TestComponent_TagsRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Output: buf})
	defer resetLogger()

	Component("pdftext").Warn("backend failed")

	if !strings.Contains(buf.String(), "component=pdftext") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

// --- Context Tests ---

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "debug with context")
	InfoContext(ctx, "info with context")
	WarnContext(ctx, "warn with context")
	ErrorContext(ctx, "error with context")

	for _, msg := range []string{"debug with context", "info with context", "warn with context", "error with context"} {
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("expected %q in output", msg)
		}
	}
}

// --- Structured Arguments Tests ---

func TestInfo_WithStructuredArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = Init(Options{Output: buf})
	defer resetLogger()

	Info("structured log", "count", 42, "name", "test")

	output := buf.String()
	for _, want := range []string{"structured log", "count=42", "name=test"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output %q", want, output)
		}
	}
}
