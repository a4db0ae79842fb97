package config

const (
	defaultUploadDir   = "~/.local/share/smoothedit/uploads"
	defaultWorkDir     = "~/.local/share/smoothedit/work"
	defaultArtifactDir = "~/.local/share/smoothedit/artifacts"
	defaultDataDir     = "~/.local/share/smoothedit/state"
	defaultLogDir      = "~/.local/share/smoothedit/logs"
	defaultAPIBind     = "127.0.0.1:8187"

	defaultOracleTimeoutSeconds = 120

	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultTargetFrameRate = 30

	defaultDownloadTimeout      = 60
	defaultCutSmoothingTimeout  = 60
	defaultAudioResyncTimeout   = 45
	defaultWindNoiseTimeout     = 30
	defaultFrameRecoveryTimeout = 60
	defaultExportTimeout        = 120

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultMaxConcurrentJobs  = 2

	defaultNotifyRequestTimeout = 10

	defaultSessionIdleTimeout = 300
	defaultSessionReapSeconds = 60

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir:   defaultUploadDir,
			WorkDir:     defaultWorkDir,
			ArtifactDir: defaultArtifactDir,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Oracle: Oracle{
			TimeoutSeconds: defaultOracleTimeoutSeconds,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			TargetFrameRate: defaultTargetFrameRate,
		},
		StageTimeouts: StageTimeouts{
			Download:      defaultDownloadTimeout,
			Analysis:      defaultOracleTimeoutSeconds,
			CutSmoothing:  defaultCutSmoothingTimeout,
			AudioResync:   defaultAudioResyncTimeout,
			WindNoise:     defaultWindNoiseTimeout,
			FrameRecovery: defaultFrameRecoveryTimeout,
			Export:        defaultExportTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Streaming: Streaming{
			SessionIdleTimeout: defaultSessionIdleTimeout,
			ReapInterval:       defaultSessionReapSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
