package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateStageTimeouts(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateOracle(); err != nil {
		return err
	}
	if err := c.validateStreaming(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.upload_dir":   c.Paths.UploadDir,
		"paths.work_dir":     c.Paths.WorkDir,
		"paths.artifact_dir": c.Paths.ArtifactDir,
		"paths.data_dir":     c.Paths.DataDir,
		"paths.log_dir":      c.Paths.LogDir,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if strings.TrimSpace(c.FFmpeg.FFmpegBinary) == "" {
		return errors.New("ffmpeg.ffmpeg_binary must be set")
	}
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		return errors.New("ffmpeg.ffprobe_binary must be set")
	}
	if c.FFmpeg.TargetFrameRate <= 0 {
		return errors.New("ffmpeg.target_frame_rate must be positive")
	}
	return nil
}

func (c *Config) validateStageTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"stage_timeouts.download":       c.StageTimeouts.Download,
		"stage_timeouts.analysis":       c.StageTimeouts.Analysis,
		"stage_timeouts.cut_smoothing":  c.StageTimeouts.CutSmoothing,
		"stage_timeouts.audio_resync":   c.StageTimeouts.AudioResync,
		"stage_timeouts.wind_noise":     c.StageTimeouts.WindNoise,
		"stage_timeouts.frame_recovery": c.StageTimeouts.FrameRecovery,
		"stage_timeouts.export":         c.StageTimeouts.Export,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.MaxConcurrentJobs <= 0 {
		return errors.New("workflow.max_concurrent_jobs must be positive")
	}
	return nil
}

func (c *Config) validateOracle() error {
	if strings.TrimSpace(c.Oracle.BaseURL) == "" {
		// Oracle disabled: the pipeline falls back to conservative defect reports.
		return nil
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		return errors.New("oracle.timeout_seconds must be positive when oracle.base_url is set")
	}
	return nil
}

func (c *Config) validateStreaming() error {
	return ensurePositiveMap(map[string]int{
		"streaming.session_idle_timeout": c.Streaming.SessionIdleTimeout,
		"streaming.reap_interval":        c.Streaming.ReapInterval,
	})
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive (seconds)", key)
		}
	}
	return nil
}
