package oracle_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/oracle"
	"github.com/jguynes74-create/Smooth-Edit/internal/services"
	"github.com/jguynes74-create/Smooth-Edit/internal/testsupport"
)

func TestAnalyzeDecodesReport(t *testing.T) {
	var gotAuth string
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Path string `json:"path"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPath = req.Path
		// Raw payload with numeric counts, matching what the analysis
		// service actually emits.
		_, _ = w.Write([]byte(`{
			"stutteredCuts": 2,
			"audioSyncIssues": true,
			"droppedFrames": 15,
			"corruptedSections": 1,
			"windNoise": true,
			"recommendations": ["Smooth out stuttered cuts"]
		}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithOracle(server.URL, "secret"),
		testsupport.WithStubbedBinaries("ffprobe"))
	client := oracle.NewClient(cfg, logging.NewNop())

	input := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, input, 32)

	report, err := client.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.StutteredCuts != 2 || report.DroppedFrames != 15 || report.CorruptedSections != 1 {
		t.Fatalf("unexpected counts in report %+v", report)
	}
	if !report.AudioSyncIssues || !report.WindNoise {
		t.Fatalf("unexpected flags in report %+v", report)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotPath != input {
		t.Fatalf("expected path forwarded, got %q", gotPath)
	}
}

func TestAnalyzeServerErrorClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithOracle(server.URL, ""),
		testsupport.WithStubbedBinaries("ffprobe"))
	client := oracle.NewClient(cfg, logging.NewNop())

	_, err := client.Analyze(context.Background(), "/tmp/clip.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestDisabledClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Oracle.BaseURL = ""
	client := oracle.NewClient(cfg, logging.NewNop())

	_, err := client.Analyze(context.Background(), "/tmp/clip.mp4")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFallbackReportMonoAudioHint(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffprobe",
		"#!/bin/sh\necho '{\"streams\":[{\"index\":0,\"codec_type\":\"audio\",\"channels\":1}],\"format\":{}}'\nexit 0\n"))
	_ = cfg

	report := oracle.FallbackReport(context.Background(), "", "/tmp/clip.mp4")
	if !report.WindNoise {
		t.Fatalf("expected wind noise hint for mono audio, got %+v", report)
	}
	if report.StutteredCuts != 0 || report.AudioSyncIssues || report.DroppedFrames != 0 || report.CorruptedSections != 0 {
		t.Fatalf("fallback must stay conservative, got %+v", report)
	}
}

func TestFallbackReportProbeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffprobe", "#!/bin/sh\nexit 1\n"))
	_ = cfg

	report := oracle.FallbackReport(context.Background(), "", "/tmp/clip.mp4")
	if report.NeedsRepair() {
		t.Fatalf("expected zero report when probe fails, got %+v", report)
	}
	if len(report.Recommendations) == 0 {
		t.Fatal("expected fallback recommendation")
	}
}
