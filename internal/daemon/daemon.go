package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/fileutil"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/notifications"
	"github.com/jguynes74-create/Smooth-Edit/internal/pipeline"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
	"github.com/jguynes74-create/Smooth-Edit/internal/streamsession"
)

// uploadExtensions lists the container formats accepted for registration.
var uploadExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	supervisor *pipeline.Supervisor
	sessions   *streamsession.Manager
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Jobs         store.HealthSummary
	InFlight     int
	Sessions     int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, supervisor *pipeline.Supervisor, sessions *streamsession.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || supervisor == nil || sessions == nil {
		return nil, errors.New("daemon requires config, store, supervisor, and session manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "smootheditd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		supervisor: supervisor,
		sessions:   sessions,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the supervisor and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another smoothedit daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.supervisor.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start supervisor: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.supervisor.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.supervisor.Stop()
	d.sessions.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr reports the bound API address, or empty when the server is off.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// RegisterUpload validates and records an uploaded video file.
func (d *Daemon) RegisterUpload(ctx context.Context, originalName, sourcePath string) (*store.Video, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}

	if strings.TrimSpace(originalName) == "" {
		originalName = filepath.Base(absPath)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := uploadExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}

	staged := absPath
	if !strings.HasPrefix(absPath, d.cfg.Paths.UploadDir+string(os.PathSeparator)) {
		staged = filepath.Join(d.cfg.Paths.UploadDir, fileutil.UniqueName(originalName))
		if err := fileutil.CopyFile(absPath, staged); err != nil {
			return nil, fmt.Errorf("stage upload: %w", err)
		}
	}

	video, err := d.store.NewVideo(ctx, originalName, staged, info.Size())
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	d.logger.Info("upload registered",
		logging.String(logging.FieldVideoID, video.ID),
		logging.String("name", originalName))
	return video, nil
}

// TriggerProcessing starts the pipeline for a video.
func (d *Daemon) TriggerProcessing(ctx context.Context, videoID string) error {
	return d.supervisor.Trigger(ctx, videoID)
}

// DeleteVideo removes a video, its artifacts, and any playback sessions.
// Drafts intentionally survive.
func (d *Daemon) DeleteVideo(ctx context.Context, videoID string) (bool, error) {
	video, err := d.store.GetVideo(ctx, videoID)
	if err != nil {
		return false, err
	}
	if video == nil {
		return false, nil
	}

	removed, err := d.store.DeleteVideo(ctx, videoID)
	if err != nil {
		return false, err
	}
	d.sessions.DestroyForVideo(videoID)

	for _, path := range []string{video.ProcessedFilePath, video.UploadPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("artifact not removed",
				logging.String("path", path), logging.Error(err))
		}
	}
	return removed, nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("job health unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Jobs:         health,
		InFlight:     d.supervisor.InFlight(),
		Sessions:     d.sessions.Len(),
	}
}
