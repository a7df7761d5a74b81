package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Runs first so the switch happens from the default text root.
func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)
	t.Cleanup(func() { Init("text", "info", nil) })

	L("slots").Debug("saved", KeySlot, "J")

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("expected a json record, got: %s", out)
	}
	if !strings.Contains(out, `"component":"slots"`) || !strings.Contains(out, `"slot":"J"`) {
		t.Fatalf("expected json fields, got: %s", out)
	}
}

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("chooser")

	var buf bytes.Buffer
	Init("text", "info", &buf)
	t.Cleanup(func() { Init("text", "info", nil) })

	logger.Info("listening", "port", 45455)

	out := buf.String()
	if !strings.Contains(out, "msg=listening") {
		t.Fatalf("expected plain listening message, got: %s", out)
	}
	if !strings.Contains(out, "component=chooser") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "port=45455") {
		t.Fatalf("expected port field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("modes")

	var buf bytes.Buffer
	Init("text", "warn", &buf)
	t.Cleanup(func() { Init("text", "info", nil) })

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)
	t.Cleanup(func() { Init("text", "info", nil) })

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without a logger returned nil")
	}

	ctx := NewContext(context.Background(), L("agent").With(KeyRunID, "run-1"))
	FromContext(ctx).Info("started")
	if out := buf.String(); !strings.Contains(out, `"runId":"run-1"`) {
		t.Fatalf("expected context logger fields, got: %s", out)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"line one\nline two", "line one line two"},
		{"a\r\nb", "a  b"},
		{strings.Repeat("x", 30), strings.Repeat("x", 30)},
		{strings.Repeat("x", 31), strings.Repeat("x", 30) + "..."},
		{strings.Repeat("é", 40), strings.Repeat("é", 30) + "..."},
	}
	for _, tt := range tests {
		if got := Preview(tt.in); got != tt.want {
			t.Errorf("Preview(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.log")

	rw, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("a"), 700*1024)
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected first backup: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Fatal("backup beyond maxBackups should not exist")
	}
}
