package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Workflow.QueuePollInterval != 5 {
		t.Fatalf("expected default poll interval, got %d", cfg.Workflow.QueuePollInterval)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
upload_dir = "` + filepath.Join(dir, "uploads") + `"
api_bind = " 127.0.0.1:9999 "

[oracle]
base_url = "http://analysis.local/"
api_key = " secret "

[stage_timeouts]
export = 300
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api bind not trimmed: %q", cfg.Paths.APIBind)
	}
	if cfg.Oracle.BaseURL != "http://analysis.local" {
		t.Fatalf("oracle base url not normalized: %q", cfg.Oracle.BaseURL)
	}
	if cfg.Oracle.APIKey != "secret" {
		t.Fatalf("oracle api key not trimmed: %q", cfg.Oracle.APIKey)
	}
	if cfg.StageTimeouts.Export != 300 {
		t.Fatalf("export timeout override lost: %d", cfg.StageTimeouts.Export)
	}
	// Untouched sections keep defaults.
	if cfg.StageTimeouts.Download != 60 {
		t.Fatalf("download timeout default lost: %d", cfg.StageTimeouts.Download)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty work dir", func(c *config.Config) { c.Paths.WorkDir = "" }, "paths.work_dir"},
		{"zero export timeout", func(c *config.Config) { c.StageTimeouts.Export = 0 }, "stage_timeouts.export"},
		{"zero concurrency", func(c *config.Config) { c.Workflow.MaxConcurrentJobs = 0 }, "max_concurrent_jobs"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero frame rate", func(c *config.Config) { c.FFmpeg.TargetFrameRate = 0 }, "target_frame_rate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfg.Paths.DataDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.WorkDir, cfg.Paths.ArtifactDir, cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
	}
	if got := cfg.DatabasePath(); got != filepath.Join(cfg.Paths.DataDir, "smoothedit.db") {
		t.Fatalf("unexpected database path %s", got)
	}
}
