package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/fileutil"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/services"
)

// commandContext is swapped in tests to observe subprocess invocations.
var commandContext = exec.CommandContext

// Engine abstracts the repair and export transforms so the orchestrator can
// be tested without a real ffmpeg binary.
type Engine interface {
	SmoothCuts(ctx context.Context, input, output string) error
	ResyncAudio(ctx context.Context, input, output string) error
	FilterWindNoise(ctx context.Context, input, output string) error
	NormalizeFrameRate(ctx context.Context, input, output string) error
	ExportForPlatforms(ctx context.Context, input, output string) error
}

// Runner invokes the ffmpeg binary for every transform.
type Runner struct {
	binary          string
	targetFrameRate int
	logger          *slog.Logger
}

// NewRunner builds a Runner from configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	binary := strings.TrimSpace(cfg.FFmpeg.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	rate := cfg.FFmpeg.TargetFrameRate
	if rate <= 0 {
		rate = 30
	}
	return &Runner{
		binary:          binary,
		targetFrameRate: rate,
		logger:          logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// SmoothCuts re-encodes the stream to even out stuttered cut boundaries.
func (r *Runner) SmoothCuts(ctx context.Context, input, output string) error {
	return r.run(ctx, "fixing_cuts", input, output,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "fast",
	)
}

// ResyncAudio realigns the audio track while copying video untouched.
func (r *Runner) ResyncAudio(ctx context.Context, input, output string) error {
	return r.run(ctx, "fixing_audio", input, output,
		"-c:v", "copy",
		"-c:a", "aac",
		"-async", "1",
	)
}

// FilterWindNoise band-passes the audio to strip low rumble and hiss.
func (r *Runner) FilterWindNoise(ctx context.Context, input, output string) error {
	return r.run(ctx, "removing_wind_noise", input, output,
		"-c:v", "copy",
		"-af", "highpass=f=200,lowpass=f=5000",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	)
}

// NormalizeFrameRate resamples video to the target constant frame rate.
func (r *Runner) NormalizeFrameRate(ctx context.Context, input, output string) error {
	rate := strconv.Itoa(r.targetFrameRate)
	return r.run(ctx, "recovering_frames", input, output,
		"-vf", "fps="+rate,
		"-c:a", "copy",
	)
}

// ExportForPlatforms produces the final delivery artifact. The profile
// targets iOS Safari: baseline H.264, fragmented faststart MP4, stereo
// low-complexity AAC, even dimensions, constant frame rate.
func (r *Runner) ExportForPlatforms(ctx context.Context, input, output string) error {
	rate := strconv.Itoa(r.targetFrameRate)
	return r.run(ctx, "exporting", input, output,
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.1",
		"-preset", "fast",
		"-crf", "28",
		"-maxrate", "800k",
		"-bufsize", "1600k",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2,fps="+rate,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-profile:a", "aac_low",
		"-b:a", "96k",
		"-ar", "44100",
		"-ac", "2",
		"-movflags", "+faststart+frag_keyframe+empty_moov",
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts",
		"-r", rate,
		"-g", rate,
	)
}

func (r *Runner) run(ctx context.Context, stage, input, output string, args ...string) error {
	full := make([]string, 0, len(args)+6)
	full = append(full, "-hide_banner", "-y", "-i", input)
	full = append(full, args...)
	full = append(full, output)

	cmd := commandContext(ctx, r.binary, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg spawns helper processes that inherit its pipes. Without a wait
	// delay, Run blocks on those pipes long after the stage budget kills
	// ffmpeg itself.
	cmd.WaitDelay = 3 * time.Second

	r.logger.Debug("running transform",
		logging.String(logging.FieldStage, stage),
		logging.String("input", input),
		logging.String("output", output))

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return services.Wrap(services.ErrTimeout, stage, "run ffmpeg", "transform aborted", ctxErr)
	}
	if err != nil {
		message := fmt.Sprintf("ffmpeg exited abnormally: %s", stderrTail(stderr.Bytes()))
		return services.Wrap(services.ErrExternalTool, stage, "run ffmpeg", message, err)
	}
	if !fileutil.IsNonEmptyFile(output) {
		return services.Wrap(services.ErrExternalTool, stage, "verify output", "transform produced no output", nil)
	}
	return nil
}

// stderrTail keeps the last few lines of diagnostics for error messages.
func stderrTail(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return "(no diagnostics)"
	}
	lines := strings.Split(trimmed, "\n")
	const keep = 5
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, " | ")
}
