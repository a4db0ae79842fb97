package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadDir   string `toml:"upload_dir"`
	WorkDir     string `toml:"work_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Oracle contains configuration for the defect analysis service.
type Oracle struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FFmpeg contains configuration for the media toolchain binaries.
type FFmpeg struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	TargetFrameRate int    `toml:"target_frame_rate"`
}

// StageTimeouts contains per-stage execution budgets in seconds.
type StageTimeouts struct {
	Download      int `toml:"download"`
	Analysis      int `toml:"analysis"`
	CutSmoothing  int `toml:"cut_smoothing"`
	AudioResync   int `toml:"audio_resync"`
	WindNoise     int `toml:"wind_noise"`
	FrameRecovery int `toml:"frame_recovery"`
	Export        int `toml:"export"`
}

// Workflow contains configuration for supervisor timing and concurrency.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Streaming contains configuration for playback stream sessions.
type Streaming struct {
	SessionIdleTimeout int `toml:"session_idle_timeout"`
	ReapInterval       int `toml:"reap_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Smooth Edit.
//
// Configuration sections by subsystem:
//   - Paths: working directories and API bind address
//   - Oracle: defect analysis service connection
//   - FFmpeg: media toolchain binaries and export targets
//   - StageTimeouts: per-stage execution budgets
//   - Workflow: supervisor polling and concurrency
//   - Notifications: ntfy push notification settings
//   - Streaming: playback session lifecycle
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Oracle        Oracle        `toml:"oracle"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	StageTimeouts StageTimeouts `toml:"stage_timeouts"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Streaming     Streaming     `toml:"streaming"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/smoothedit/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to the given path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath expands a leading ~ and resolves the path to an absolute form.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. When no file exists the defaults
// are returned with exists=false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates every directory the daemon relies on.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.UploadDir,
		c.Paths.WorkDir,
		c.Paths.ArtifactDir,
		c.Paths.DataDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "smoothedit.db")
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
