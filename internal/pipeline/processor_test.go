package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/fileutil"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/pipeline"
	"github.com/jguynes74-create/Smooth-Edit/internal/services"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
	"github.com/jguynes74-create/Smooth-Edit/internal/testsupport"
)

// fakeEngine copies input to output for each transform, optionally failing
// or panicking in named stages.
type fakeEngine struct {
	failing   map[string]bool
	panicking map[string]bool

	mu    sync.Mutex
	calls []string
}

func (e *fakeEngine) op(name string, input, output string) error {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
	if e.panicking[name] {
		panic("stub panic in " + name)
	}
	if e.failing[name] {
		return services.Wrap(services.ErrExternalTool, name, "run ffmpeg", "stub failure", nil)
	}
	return fileutil.CopyFile(input, output)
}

func (e *fakeEngine) stageCalls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.calls...)
}

func (e *fakeEngine) SmoothCuts(_ context.Context, in, out string) error {
	return e.op("fixing_cuts", in, out)
}

func (e *fakeEngine) ResyncAudio(_ context.Context, in, out string) error {
	return e.op("fixing_audio", in, out)
}

func (e *fakeEngine) FilterWindNoise(_ context.Context, in, out string) error {
	return e.op("removing_wind_noise", in, out)
}

func (e *fakeEngine) NormalizeFrameRate(_ context.Context, in, out string) error {
	return e.op("recovering_frames", in, out)
}

func (e *fakeEngine) ExportForPlatforms(_ context.Context, in, out string) error {
	return e.op("exporting", in, out)
}

// fixedOracle returns a canned report or error. onAnalyze, when set, runs
// before the verdict is returned so tests can interleave store changes.
type fixedOracle struct {
	report    store.DefectReport
	err       error
	onAnalyze func()
}

func (o fixedOracle) Analyze(context.Context, string) (store.DefectReport, error) {
	if o.onAnalyze != nil {
		o.onAnalyze()
	}
	return o.report, o.err
}

func newFixture(t *testing.T, engine *fakeEngine, client fixedOracle) (*store.Store, *pipeline.Processor, *store.Video) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	uploadPath := filepath.Join(cfg.Paths.UploadDir, "raw_beach_clip.mp4")
	testsupport.WriteFile(t, uploadPath, 128)
	video := testsupport.NewVideo(t, st, "raw_beach_clip.mp4", uploadPath)

	processor := pipeline.NewProcessor(cfg, st, engine, client, nil, logging.NewNop())
	return st, processor, video
}

func TestProcessAppliesAllRepairs(t *testing.T) {
	engine := &fakeEngine{}
	st, processor, video := newFixture(t, engine, fixedOracle{report: store.DefectReport{
		StutteredCuts:     3,
		AudioSyncIssues:   true,
		DroppedFrames:     12,
		CorruptedSections: 1,
		WindNoise:         true,
	}})

	if err := processor.Process(context.Background(), video.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	wantCalls := []string{"fixing_cuts", "fixing_audio", "removing_wind_noise", "recovering_frames", "exporting"}
	if strings.Join(engine.calls, ",") != strings.Join(wantCalls, ",") {
		t.Fatalf("unexpected stage order %v", engine.calls)
	}

	got, err := st.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != store.VideoCompleted {
		t.Fatalf("expected completed video, got %s", got.Status)
	}
	if got.ProcessedFilePath == "" {
		t.Fatal("expected processed file path")
	}
	if _, err := os.Stat(got.ProcessedFilePath); err != nil {
		t.Fatalf("final artifact missing: %v", err)
	}

	fixes, err := got.Fixes()
	if err != nil {
		t.Fatalf("Fixes: %v", err)
	}
	if fixes.StutteredCutsFixed != 3 || !fixes.AudioSyncFixed || fixes.FramesRecovered != 12 || fixes.SectionsRepaired != 1 || !fixes.WindNoiseRemoved {
		t.Fatalf("expected all fixes recorded with counts, got %+v", fixes)
	}
	if len(fixes.DegradedStages) != 0 {
		t.Fatalf("expected no degraded stages, got %v", fixes.DegradedStages)
	}

	job, err := st.GetJobByVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetJobByVideo: %v", err)
	}
	if job.Status != store.JobCompleted || job.Progress != 100 || job.CurrentStep != "" {
		t.Fatalf("unexpected terminal job %+v", job)
	}
}

func TestProcessSkipsCleanStages(t *testing.T) {
	engine := &fakeEngine{}
	_, processor, video := newFixture(t, engine, fixedOracle{report: store.DefectReport{WindNoise: true}})

	if err := processor.Process(context.Background(), video.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []string{"removing_wind_noise", "exporting"}
	if strings.Join(engine.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected stages %v", engine.calls)
	}
}

func TestProcessStageFailureFallsBack(t *testing.T) {
	engine := &fakeEngine{failing: map[string]bool{"fixing_audio": true}}
	st, processor, video := newFixture(t, engine, fixedOracle{report: store.DefectReport{
		StutteredCuts:   2,
		AudioSyncIssues: true,
	}})

	if err := processor.Process(context.Background(), video.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := st.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != store.VideoCompleted {
		t.Fatalf("stage failure must not fail the job, got %s", got.Status)
	}
	fixes, err := got.Fixes()
	if err != nil {
		t.Fatalf("Fixes: %v", err)
	}
	if fixes.StutteredCutsFixed != 2 {
		t.Fatalf("successful stage must still be recorded, got %+v", fixes)
	}
	if fixes.AudioSyncFixed {
		t.Fatal("failed stage must not claim its fix")
	}
	if len(fixes.DegradedStages) != 1 || fixes.DegradedStages[0] != "fixing_audio" {
		t.Fatalf("expected degraded fixing_audio, got %v", fixes.DegradedStages)
	}
}

func TestProcessExportFailureDeliversPreviousArtifact(t *testing.T) {
	engine := &fakeEngine{failing: map[string]bool{"exporting": true}}
	st, processor, video := newFixture(t, engine, fixedOracle{report: store.DefectReport{StutteredCuts: 1}})

	if err := processor.Process(context.Background(), video.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := st.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != store.VideoCompleted || got.ProcessedFilePath == "" {
		t.Fatalf("expected completion with artifact, got %s %q", got.Status, got.ProcessedFilePath)
	}
	fixes, _ := got.Fixes()
	if len(fixes.DegradedStages) != 1 || fixes.DegradedStages[0] != "exporting" {
		t.Fatalf("expected degraded export, got %v", fixes.DegradedStages)
	}
}

func TestProcessAnalysisFailureUsesFallback(t *testing.T) {
	engine := &fakeEngine{}
	st, processor, video := newFixture(t, engine, fixedOracle{
		err: services.Wrap(services.ErrTimeout, "analyzing", "", "oracle timed out", nil),
	})

	if err := processor.Process(context.Background(), video.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The conservative fallback skips every repair, so only export runs.
	if strings.Join(engine.calls, ",") != "exporting" {
		t.Fatalf("expected export-only run, got %v", engine.calls)
	}
	got, err := st.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != store.VideoCompleted {
		t.Fatalf("analysis fallback must still complete, got %s", got.Status)
	}
}

func TestProcessMissingSourceFailsJob(t *testing.T) {
	engine := &fakeEngine{}
	st, processor, video := newFixture(t, engine, fixedOracle{})

	if err := os.Remove(video.UploadPath); err != nil {
		t.Fatalf("remove upload: %v", err)
	}

	err := processor.Process(context.Background(), video.ID)
	if err == nil {
		t.Fatal("expected hard failure for missing source")
	}

	got, getErr := st.GetVideo(context.Background(), video.ID)
	if getErr != nil {
		t.Fatalf("GetVideo: %v", getErr)
	}
	if got.Status != store.VideoFailed {
		t.Fatalf("expected failed video, got %s", got.Status)
	}
	if got.ProcessedFilePath != "" {
		t.Fatalf("failed job must not record artifact, got %q", got.ProcessedFilePath)
	}
	job, jobErr := st.GetJobByVideo(context.Background(), video.ID)
	if jobErr != nil {
		t.Fatalf("GetJobByVideo: %v", jobErr)
	}
	if job.Status != store.JobFailed || job.ErrorMessage == "" {
		t.Fatalf("expected failed job with message, got %+v", job)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("no transforms expected, got %v", engine.calls)
	}
}

func TestProcessCreatesBackupDraft(t *testing.T) {
	engine := &fakeEngine{}
	st, processor, video := newFixture(t, engine, fixedOracle{})

	if err := processor.Process(context.Background(), video.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	drafts, err := st.ListDrafts(context.Background())
	if err != nil {
		t.Fatalf("ListDrafts: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected one draft, got %d", len(drafts))
	}
	draft := drafts[0]
	if !draft.AutoCreated || draft.VideoID != video.ID {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.Name != "Raw Beach Clip (Auto-Backup)" {
		t.Fatalf("unexpected draft name %q", draft.Name)
	}

	got, err := st.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if draft.FilePath != got.ProcessedFilePath {
		t.Fatalf("draft must reference the final artifact, got %q want %q", draft.FilePath, got.ProcessedFilePath)
	}
	info, err := os.Stat(got.ProcessedFilePath)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if draft.FileSize != info.Size() {
		t.Fatalf("draft size %d does not match artifact size %d", draft.FileSize, info.Size())
	}
	if draft.LastModified.IsZero() {
		t.Fatal("expected last-modified stamp on draft")
	}
}

func TestProcessCheckpointsSkippedStages(t *testing.T) {
	engine := &fakeEngine{}

	// Stop the job out from under the processor right after analysis. The
	// first stage boundary then refuses its checkpoint, and it must be the
	// first repair stage even though that repair is not needed.
	var stopJob func()
	client := fixedOracle{onAnalyze: func() {
		if stopJob != nil {
			stopJob()
		}
	}}
	st, processor, video := newFixture(t, engine, client)

	stopJob = func() {
		job, err := st.GetJobByVideo(context.Background(), video.ID)
		if err != nil || job == nil {
			t.Fatalf("GetJobByVideo: %v", err)
		}
		if err := st.FailJob(context.Background(), job.ID, "stopped for maintenance"); err != nil {
			t.Fatalf("FailJob: %v", err)
		}
	}

	err := processor.Process(context.Background(), video.ID)
	if err == nil {
		t.Fatal("expected checkpoint refusal after external job stop")
	}
	if !strings.Contains(err.Error(), "fixing_cuts") {
		t.Fatalf("expected refusal at first stage boundary, got %v", err)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("no transforms expected, got %v", engine.calls)
	}
}
