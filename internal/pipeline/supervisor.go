package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/notifications"
	"github.com/jguynes74-create/Smooth-Edit/internal/services"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

// ErrAlreadyProcessing is returned when a trigger races an in-flight job for
// the same video.
var ErrAlreadyProcessing = errors.New("video is already being processed")

// Supervisor owns the processing goroutines: it triggers jobs on demand,
// polls for uploaded videos, bounds concurrency, and survives stage panics.
type Supervisor struct {
	cfg       *config.Config
	store     *store.Store
	processor *Processor
	notifier  notifications.Service
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
	slots    chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSupervisor builds a supervisor around a processor.
func NewSupervisor(cfg *config.Config, st *store.Store, processor *Processor, notifier notifications.Service, logger *slog.Logger) *Supervisor {
	maxJobs := cfg.Workflow.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Supervisor{
		cfg:       cfg,
		store:     st,
		processor: processor,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "supervisor"),
		inflight:  make(map[string]struct{}),
		slots:     make(chan struct{}, maxJobs),
	}
}

// Trigger launches processing for a video and returns immediately. A second
// trigger for the same video while the first is in flight yields
// ErrAlreadyProcessing.
func (s *Supervisor) Trigger(ctx context.Context, videoID string) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return errors.New("supervisor not started")
	}
	if _, busy := s.inflight[videoID]; busy {
		s.mu.Unlock()
		return ErrAlreadyProcessing
	}
	s.inflight[videoID] = struct{}{}
	s.mu.Unlock()

	job, err := s.store.GetJobByVideo(ctx, videoID)
	if err == nil && job != nil && !job.Status.IsTerminal() {
		s.release(videoID)
		return ErrAlreadyProcessing
	}

	s.wg.Add(1)
	go s.runJob(videoID)
	return nil
}

func (s *Supervisor) runJob(videoID string) {
	defer s.wg.Done()
	defer s.release(videoID)

	ctx := s.runContext()
	if ctx == nil {
		return
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			s.persistPanic(videoID, recovered)
		}
	}()

	err := s.processor.Process(ctx, videoID)
	if err != nil && errors.Is(err, store.ErrJobActive) {
		return
	}
	if err != nil {
		s.logger.Error("job finished with error",
			logging.String(logging.FieldVideoID, videoID),
			logging.Error(err))
	}
	s.notifyOutcome(videoID, err)
}

// notifyOutcome pushes a completion or failure notification. Delivery
// problems are logged and never affect job state.
func (s *Supervisor) notifyOutcome(videoID string, processErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	name := videoID
	var degraded int
	if video, err := s.store.GetVideo(ctx, videoID); err == nil && video != nil {
		name = video.OriginalName
		if fixes, err := video.Fixes(); err == nil {
			degraded = len(fixes.DegradedStages)
		}
	}

	var err error
	if processErr != nil {
		err = s.notifier.NotifyProcessingFailed(ctx, name, services.Details(processErr).Message)
	} else {
		err = s.notifier.NotifyProcessingCompleted(ctx, name, degraded)
	}
	if err != nil {
		s.logger.Warn("notification not delivered", logging.Error(err))
	}
}

// persistPanic converts a stage panic into a recorded failure so the video
// never sticks in processing.
func (s *Supervisor) persistPanic(videoID string, recovered any) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Error("processing panicked",
		logging.String(logging.FieldVideoID, videoID),
		logging.Any("panic", recovered))

	message := fmt.Sprintf("internal error: %v", recovered)
	if job, err := s.store.GetJobByVideo(ctx, videoID); err == nil && job != nil {
		if err := s.store.FailJob(ctx, job.ID, message); err != nil {
			s.logger.Error("record panic on job", logging.Error(err))
		}
	}
	if err := s.store.SetVideoStatus(ctx, videoID, store.VideoFailed); err != nil {
		s.logger.Error("record panic on video", logging.Error(err))
	}
}

func (s *Supervisor) release(videoID string) {
	s.mu.Lock()
	delete(s.inflight, videoID)
	s.mu.Unlock()
}

func (s *Supervisor) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start reclaims orphaned jobs and begins polling for uploaded videos.
func (s *Supervisor) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return errors.New("supervisor already started")
	}
	s.cancel = cancel
	s.ctx = runCtx
	s.mu.Unlock()

	reclaimed, err := s.store.ReclaimOrphanedJobs(runCtx, "daemon restarted while job was in flight")
	if err != nil {
		return fmt.Errorf("reclaim orphaned jobs: %w", err)
	}
	if reclaimed > 0 {
		s.logger.Warn("reclaimed orphaned jobs", logging.Int64("count", reclaimed))
	}

	s.wg.Add(1)
	go s.poll(runCtx)
	return nil
}

func (s *Supervisor) poll(ctx context.Context) {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.Workflow.QueuePollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	retry := time.Duration(s.cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = interval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := interval
		videos, err := s.store.ListVideos(ctx, store.VideoUploaded)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("poll uploaded videos", logging.Error(err))
			}
			wait = retry
		} else {
			for _, video := range videos {
				if err := s.Trigger(ctx, video.ID); err != nil && !errors.Is(err, ErrAlreadyProcessing) {
					s.logger.Error("trigger uploaded video",
						logging.String(logging.FieldVideoID, video.ID),
						logging.Error(err))
				}
			}
		}

		timer.Reset(wait)
	}
}

// Stop cancels polling and waits for in-flight jobs to finish persisting.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.ctx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// InFlight reports how many jobs are currently being processed.
func (s *Supervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
