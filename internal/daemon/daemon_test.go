package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/media/ffmpeg"
	"github.com/jguynes74-create/Smooth-Edit/internal/oracle"
	"github.com/jguynes74-create/Smooth-Edit/internal/pipeline"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
	"github.com/jguynes74-create/Smooth-Edit/internal/streamsession"
	"github.com/jguynes74-create/Smooth-Edit/internal/testsupport"
)

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *config.Config, *store.Store) {
	t.Helper()

	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	logger := logging.NewNop()
	st := testsupport.MustOpenStore(t, cfg)
	engine := ffmpeg.NewRunner(cfg, logger)
	client := oracle.NewClient(cfg, logger)
	processor := pipeline.NewProcessor(cfg, st, engine, client, nil, logger)
	supervisor := pipeline.NewSupervisor(cfg, st, processor, nil, logger)
	sessions := streamsession.NewManager(cfg, logger)

	d, err := New(cfg, st, supervisor, sessions, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, cfg, st
}

func startDaemon(t *testing.T, d *Daemon) {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func writeUpload(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really video"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func TestStartRejectsSecondInstance(t *testing.T) {
	first, cfg, st := newDaemon(t)
	startDaemon(t, first)

	logger := logging.NewNop()
	engine := ffmpeg.NewRunner(cfg, logger)
	client := oracle.NewClient(cfg, logger)
	processor := pipeline.NewProcessor(cfg, st, engine, client, nil, logger)
	supervisor := pipeline.NewSupervisor(cfg, st, processor, nil, logger)
	sessions := streamsession.NewManager(cfg, logger)

	second, err := New(cfg, st, supervisor, sessions, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	d, _, _ := newDaemon(t)
	startDaemon(t, d)
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected error on double start")
	}
	d.Stop()
	d.Stop()
}

func TestRegisterUploadStagesFile(t *testing.T) {
	d, cfg, _ := newDaemon(t)
	source := writeUpload(t, t.TempDir(), "clip.mp4")

	video, err := d.RegisterUpload(context.Background(), "My Clip.mp4", source)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	if video.OriginalName != "My Clip.mp4" {
		t.Fatalf("original name = %q", video.OriginalName)
	}
	if !strings.HasPrefix(video.UploadPath, cfg.Paths.UploadDir) {
		t.Fatalf("upload not staged under upload dir: %s", video.UploadPath)
	}
	if _, err := os.Stat(video.UploadPath); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if video.Status != store.VideoUploaded {
		t.Fatalf("status = %s", video.Status)
	}
}

func TestRegisterUploadRejectsBadInput(t *testing.T) {
	d, _, _ := newDaemon(t)
	ctx := context.Background()

	if _, err := d.RegisterUpload(ctx, "", ""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := d.RegisterUpload(ctx, "", filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := d.RegisterUpload(ctx, "", t.TempDir()); err == nil {
		t.Fatal("expected error for directory")
	}

	source := writeUpload(t, t.TempDir(), "notes.txt")
	if _, err := d.RegisterUpload(ctx, "", source); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestDeleteVideoRemovesArtifacts(t *testing.T) {
	d, cfg, st := newDaemon(t)
	ctx := context.Background()

	source := writeUpload(t, t.TempDir(), "clip.mp4")
	video, err := d.RegisterUpload(ctx, "clip.mp4", source)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	artifact := writeUpload(t, cfg.Paths.ArtifactDir, "video-"+video.ID+".mp4")
	if err := st.SetVideoCompleted(ctx, video.ID, artifact, store.FixesApplied{}); err != nil {
		t.Fatalf("SetVideoCompleted: %v", err)
	}
	d.sessions.Create(video.ID, artifact)

	removed, err := d.DeleteVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if !removed {
		t.Fatal("expected video row removed")
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatalf("artifact still present: %v", err)
	}
	if d.sessions.Len() != 0 {
		t.Fatalf("sessions remaining: %d", d.sessions.Len())
	}

	removed, err = d.DeleteVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("second DeleteVideo: %v", err)
	}
	if removed {
		t.Fatal("expected second delete to be a no-op")
	}
}

func TestStatusReportsRuntimeInfo(t *testing.T) {
	d, cfg, _ := newDaemon(t)
	startDaemon(t, d)

	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d", status.PID)
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("database path = %s", status.DatabasePath)
	}
	if d.APIAddr() == "" {
		t.Fatal("expected bound api address")
	}
}

func TestTestNotificationRequiresTopic(t *testing.T) {
	d, _, _ := newDaemon(t)
	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected unsent without topic")
	}
	if detail == "" {
		t.Fatal("expected detail")
	}
}
