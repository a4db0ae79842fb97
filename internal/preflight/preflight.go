package preflight

import (
	"context"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckBinary("FFmpeg", cfg.FFmpeg.FFmpegBinary, "ffmpeg"),
		CheckBinary("FFprobe", cfg.FFmpeg.FFprobeBinary, "ffprobe"),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, minimumWorkSpaceBytes),
	}

	if cfg.Oracle.BaseURL != "" {
		results = append(results, CheckOracle(ctx, cfg.Oracle.BaseURL, cfg.Oracle.APIKey))
	}

	return results
}

// AllPassed reports whether every check in the slice passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
