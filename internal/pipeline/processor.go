package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/fileutil"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/media/ffmpeg"
	"github.com/jguynes74-create/Smooth-Edit/internal/oracle"
	"github.com/jguynes74-create/Smooth-Edit/internal/services"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

// Fetcher retrieves remote source objects into the local working directory.
type Fetcher interface {
	Fetch(ctx context.Context, source, dest string) error
}

// milestones maps each stage to the progress value persisted before the
// stage runs. Completion is recorded separately at 100.
var milestones = map[store.Step]int{
	store.StepDownloading:       5,
	store.StepAnalyzing:         10,
	store.StepFixingCuts:        25,
	store.StepFixingAudio:       40,
	store.StepRemovingWindNoise: 55,
	store.StepRecoveringFrames:  70,
	store.StepExporting:         95,
}

// Processor drives a single video through download, analysis, the
// conditional repairs, and export.
type Processor struct {
	cfg     *config.Config
	store   *store.Store
	engine  ffmpeg.Engine
	oracle  oracle.Client
	fetcher Fetcher
	logger  *slog.Logger

	titler cases.Caser
}

// NewProcessor wires a processor from its collaborators. fetcher may be nil
// when remote object sources are not in play.
func NewProcessor(cfg *config.Config, st *store.Store, engine ffmpeg.Engine, client oracle.Client, fetcher Fetcher, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:     cfg,
		store:   st,
		engine:  engine,
		oracle:  client,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		titler:  cases.Title(language.English),
	}
}

// Process runs the full repair pipeline for one video. Download and analysis
// problems fail the job; a repair or export stage that fails is skipped and
// the previous artifact carries forward.
func (p *Processor) Process(ctx context.Context, videoID string) error {
	video, err := p.store.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("video %s not found", videoID), nil)
	}

	job, err := p.store.CreateJob(ctx, video.ID)
	if err != nil {
		return err
	}
	if err := p.store.StartJob(ctx, job.ID); err != nil {
		return err
	}
	if err := p.store.SetVideoStatus(ctx, video.ID, store.VideoProcessing); err != nil {
		return err
	}

	ctx = services.WithVideoID(services.WithJobID(ctx, job.ID), video.ID)
	logger := logging.WithContext(ctx, p.logger)

	if err := p.run(ctx, logger, video, job); err != nil {
		p.markFailed(logger, job.ID, video.ID, err)
		return err
	}
	return nil
}

func (p *Processor) run(ctx context.Context, logger *slog.Logger, video *store.Video, job *store.Job) error {
	source, err := p.download(ctx, logger, video, job)
	if err != nil {
		return err
	}

	report, err := p.analyze(ctx, logger, video, job, source)
	if err != nil {
		return err
	}

	var fixes store.FixesApplied
	current := source
	var intermediates []string

	type repair struct {
		step    store.Step
		needed  bool
		budget  int
		exec    func(context.Context, string, string) error
		applied func()
	}
	repairs := []repair{
		{
			step:   store.StepFixingCuts,
			needed: report.StutteredCuts > 0 || report.CorruptedSections > 0,
			budget: p.cfg.StageTimeouts.CutSmoothing,
			exec:   p.engine.SmoothCuts,
			applied: func() {
				fixes.StutteredCutsFixed = report.StutteredCuts
				fixes.SectionsRepaired = report.CorruptedSections
			},
		},
		{
			step:    store.StepFixingAudio,
			needed:  report.AudioSyncIssues,
			budget:  p.cfg.StageTimeouts.AudioResync,
			exec:    p.engine.ResyncAudio,
			applied: func() { fixes.AudioSyncFixed = true },
		},
		{
			step:    store.StepRemovingWindNoise,
			needed:  report.WindNoise,
			budget:  p.cfg.StageTimeouts.WindNoise,
			exec:    p.engine.FilterWindNoise,
			applied: func() { fixes.WindNoiseRemoved = true },
		},
		{
			step:    store.StepRecoveringFrames,
			needed:  report.DroppedFrames > 0,
			budget:  p.cfg.StageTimeouts.FrameRecovery,
			exec:    p.engine.NormalizeFrameRate,
			applied: func() { fixes.FramesRecovered = report.DroppedFrames },
		},
	}

	// Every stage boundary persists its milestone, skipped or not, so
	// polling clients see the full 5..95 progression.
	for _, r := range repairs {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTimeout, string(r.step), "", "processing cancelled", err)
		}
		if err := p.checkpoint(ctx, job.ID, r.step); err != nil {
			return err
		}
		if !r.needed {
			continue
		}
		output := p.workPath(video.ID, r.step)
		if err := p.transform(ctx, r.exec, r.budget, current, output); err != nil {
			logger.Warn("stage degraded, keeping previous artifact",
				logging.String(logging.FieldStage, string(r.step)),
				logging.Error(err))
			fixes.DegradedStages = append(fixes.DegradedStages, string(r.step))
			_ = os.Remove(output)
			continue
		}
		if current != source {
			intermediates = append(intermediates, current)
		}
		current = output
		r.applied()
	}

	if err := p.checkpoint(ctx, job.ID, store.StepExporting); err != nil {
		return err
	}
	exported := p.workPath(video.ID, store.StepExporting)
	if err := p.transform(ctx, p.engine.ExportForPlatforms, p.cfg.StageTimeouts.Export, current, exported); err != nil {
		logger.Warn("export degraded, delivering unexported artifact",
			logging.String(logging.FieldStage, string(store.StepExporting)),
			logging.Error(err))
		fixes.DegradedStages = append(fixes.DegradedStages, string(store.StepExporting))
		_ = os.Remove(exported)
	} else {
		if current != source {
			intermediates = append(intermediates, current)
		}
		current = exported
	}

	final, err := p.promote(video, current, current == source)
	if err != nil {
		return err
	}

	if err := p.store.SetVideoCompleted(ctx, video.ID, final, fixes); err != nil {
		return err
	}
	p.createBackupDraft(ctx, logger, video, final)
	if err := p.store.CompleteJob(ctx, job.ID); err != nil {
		return err
	}

	p.cleanup(logger, intermediates, final)
	logger.Info("processing complete",
		logging.String("artifact", final),
		logging.Int("degraded_stages", len(fixes.DegradedStages)))
	return nil
}

// download stages the source into the working directory when it lives in
// remote object storage. Local uploads pass through untouched.
func (p *Processor) download(ctx context.Context, logger *slog.Logger, video *store.Video, job *store.Job) (string, error) {
	if err := p.checkpoint(ctx, job.ID, store.StepDownloading); err != nil {
		return "", err
	}

	source := video.UploadPath
	if strings.HasPrefix(source, "/objects/") {
		if p.fetcher == nil {
			return "", services.Wrap(services.ErrConfiguration, string(store.StepDownloading), "", "no fetcher configured for remote source", nil)
		}
		dest := filepath.Join(p.cfg.Paths.WorkDir, fileutil.UniqueName(video.OriginalName))
		stageCtx, cancel := p.stageContext(ctx, p.cfg.StageTimeouts.Download)
		defer cancel()
		if err := p.fetcher.Fetch(stageCtx, source, dest); err != nil {
			return "", services.Wrap(services.ErrTransient, string(store.StepDownloading), "fetch source", err.Error(), err)
		}
		source = dest
	}

	if !fileutil.IsNonEmptyFile(source) {
		return "", services.Wrap(services.ErrValidation, string(store.StepDownloading), "", fmt.Sprintf("source file missing or empty: %s", source), nil)
	}
	logger.Debug("source ready", logging.String("path", source))
	return source, nil
}

// analyze asks the oracle for a defect report, substituting the conservative
// fallback when the service is unavailable or times out.
func (p *Processor) analyze(ctx context.Context, logger *slog.Logger, video *store.Video, job *store.Job, source string) (store.DefectReport, error) {
	if err := p.checkpoint(ctx, job.ID, store.StepAnalyzing); err != nil {
		return store.DefectReport{}, err
	}

	stageCtx, cancel := p.stageContext(ctx, p.cfg.StageTimeouts.Analysis)
	defer cancel()

	report, err := p.oracle.Analyze(stageCtx, source)
	if err != nil {
		if parent := ctx.Err(); parent != nil {
			return store.DefectReport{}, services.Wrap(services.ErrTimeout, string(store.StepAnalyzing), "", "processing cancelled", parent)
		}
		logger.Warn("analysis unavailable, using fallback verdict", logging.Error(err))
		report = oracle.FallbackReport(ctx, p.cfg.FFmpeg.FFprobeBinary, source)
	}

	if err := p.store.SetVideoIssues(ctx, video.ID, report); err != nil {
		return store.DefectReport{}, err
	}
	logger.Info("analysis complete",
		logging.Int("stuttered_cuts", report.StutteredCuts),
		logging.Bool("audio_sync_issues", report.AudioSyncIssues),
		logging.Int("dropped_frames", report.DroppedFrames),
		logging.Int("corrupted_sections", report.CorruptedSections),
		logging.Bool("wind_noise", report.WindNoise))
	return report, nil
}

func (p *Processor) transform(ctx context.Context, exec func(context.Context, string, string) error, budgetSeconds int, input, output string) error {
	stageCtx, cancel := p.stageContext(ctx, budgetSeconds)
	defer cancel()
	return exec(stageCtx, input, output)
}

func (p *Processor) checkpoint(ctx context.Context, jobID int64, step store.Step) error {
	applied, err := p.store.UpdateJobCheckpoint(ctx, jobID, milestones[step], step)
	if err != nil {
		return err
	}
	if !applied {
		return services.Wrap(services.ErrValidation, string(step), "checkpoint", "job is no longer processing", nil)
	}
	return nil
}

// promote moves the final artifact into the artifact directory. The original
// upload is copied rather than moved so the upload itself survives.
func (p *Processor) promote(video *store.Video, current string, isOriginal bool) (string, error) {
	final := filepath.Join(p.cfg.Paths.ArtifactDir, "video-"+video.ID+".mp4")
	if isOriginal {
		if err := fileutil.CopyFile(current, final); err != nil {
			return "", fmt.Errorf("promote artifact: %w", err)
		}
		return final, nil
	}
	if err := fileutil.MoveFile(current, final); err != nil {
		return "", fmt.Errorf("promote artifact: %w", err)
	}
	return final, nil
}

// createBackupDraft records an automatic draft pointing at the finished
// artifact. Failure here never fails the job.
func (p *Processor) createBackupDraft(ctx context.Context, logger *slog.Logger, video *store.Video, artifact string) {
	name := p.draftName(video.OriginalName)
	size, err := fileutil.FileSize(artifact)
	if err != nil {
		size = 0
	}
	if _, err := p.store.CreateDraft(ctx, video.ID, name, artifact, size, true); err != nil {
		logger.Warn("backup draft not created", logging.Error(err))
		return
	}
	logger.Debug("backup draft created",
		logging.String("name", name),
		logging.String("path", artifact))
}

func (p *Processor) draftName(originalName string) string {
	stem := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		stem = "Untitled"
	}
	return p.titler.String(stem) + " (Auto-Backup)"
}

func (p *Processor) cleanup(logger *slog.Logger, intermediates []string, final string) {
	for _, path := range intermediates {
		if path == final {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("intermediate not removed", logging.String("path", path), logging.Error(err))
		}
	}
}

func (p *Processor) workPath(videoID string, step store.Step) string {
	return filepath.Join(p.cfg.Paths.WorkDir, fileutil.StageArtifactName(videoID, string(step), ".mp4"))
}

func (p *Processor) stageContext(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// markFailed persists the terminal failure on both the job and the video.
// A background context keeps the writes alive when ctx was cancelled.
func (p *Processor) markFailed(logger *slog.Logger, jobID int64, videoID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	details := services.Details(cause)
	if err := p.store.FailJob(ctx, jobID, details.Message); err != nil {
		logger.Error("record job failure", logging.Error(err))
	}
	if err := p.store.SetVideoStatus(ctx, videoID, store.VideoFailed); err != nil {
		logger.Error("record video failure", logging.Error(err))
	}
	logger.Error("processing failed",
		logging.String("error_kind", string(details.Kind)),
		logging.Error(cause))
}
