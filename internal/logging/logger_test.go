package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/services"
)

func TestConsoleHandlerLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))
	logger = NewComponentLogger(logger, "pipeline")

	logger.Info("stage finished", String(FieldStage, "fixing_cuts"), Int("attempt", 1))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO pipeline: stage finished") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "stage=fixing_cuts") || !strings.Contains(line, "attempt=1") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))

	logger.Warn("retrying", String("reason", "oracle timed out"))

	if !strings.Contains(buf.String(), `reason="oracle timed out"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestJSONHandlerShape(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar)))

	logger.Error("export failed", String(FieldVideoID, "vid-1"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("parse json line: %v", err)
	}
	if payload["level"] != "error" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["msg"] != "export failed" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload[FieldVideoID] != "vid-1" {
		t.Fatalf("missing video id attr: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("expected ts key")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", OutputPaths: nil})
	if err != nil {
		t.Fatalf("construct logger: %v", err)
	}
	_ = logger

	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel("warn"))
	filtered := slog.New(newConsoleHandler(&buf, lvl))
	filtered.Debug("noise")
	filtered.Info("still noise")
	filtered.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Fatalf("expected debug/info suppressed, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 7)
	ctx = services.WithVideoID(ctx, "vid-9")
	ctx = services.WithStage(ctx, "exporting")

	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))
	WithContext(ctx, logger).Info("progress")

	line := buf.String()
	for _, want := range []string{"job_id=7", "video_id=vid-9", "stage=exporting"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("dropped")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
}
