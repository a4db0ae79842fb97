package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/pipeline"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

// apiServer exposes the daemon HTTP API when an API bind address is
// configured.
type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	s := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	if bind == "" {
		return s, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/videos", s.handleVideos)
	mux.HandleFunc("/api/videos/", s.handleVideoByID)
	mux.HandleFunc("/api/drafts", s.handleDrafts)
	mux.HandleFunc("/api/drafts/", s.handleDraftByID)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/notifications/test", s.handleTestNotification)

	s.server = &http.Server{
		Handler:           authMiddleware(cfg.Paths.APIToken, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("bind api listener on %s: %w", s.bind, err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server terminated", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening", logging.String("addr", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server == nil || s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	s.listener = nil
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type uploadRequest struct {
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
}

func (s *apiServer) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		videos, err := s.daemon.store.ListVideos(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list videos")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
	case http.MethodPost:
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		video, err := s.daemon.RegisterUpload(r.Context(), req.OriginalName, req.Path)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, video)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleVideoByID dispatches /api/videos/{id} and its sub-resources.
func (s *apiServer) handleVideoByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "video id required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleVideoGet(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.handleVideoDelete(w, r, id)
	case action == "process" && r.Method == http.MethodPost:
		s.handleVideoProcess(w, r, id)
	case action == "status" && r.Method == http.MethodGet:
		s.handleVideoStatus(w, r, id)
	case action == "stream" && r.Method == http.MethodGet:
		s.handleVideoStream(w, r, id)
	case action == "download" && r.Method == http.MethodGet:
		s.handleVideoDownload(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleVideoGet(w http.ResponseWriter, r *http.Request, id string) {
	video, ok := s.lookupVideo(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (s *apiServer) handleVideoDelete(w http.ResponseWriter, r *http.Request, id string) {
	removed, err := s.daemon.DeleteVideo(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *apiServer) handleVideoProcess(w http.ResponseWriter, r *http.Request, id string) {
	err := s.daemon.TriggerProcessing(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
	case errors.Is(err, pipeline.ErrAlreadyProcessing):
		writeError(w, http.StatusConflict, "video is already processing")
	default:
		writeError(w, http.StatusInternalServerError, "failed to start processing")
	}
}

// handleVideoStatus implements the polling contract used by upload clients.
func (s *apiServer) handleVideoStatus(w http.ResponseWriter, r *http.Request, id string) {
	video, ok := s.lookupVideo(w, r, id)
	if !ok {
		return
	}
	job, err := s.daemon.store.GetJobByVideo(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	payload := map[string]any{
		"status":       video.Status,
		"progress":     0,
		"currentStep":  "",
		"errorMessage": "",
	}
	if job != nil {
		// The job row is written before the video row on each transition,
		// so it is the fresher of the two.
		payload["status"] = job.Status
		payload["progress"] = job.Progress
		payload["currentStep"] = job.CurrentStep
		payload["errorMessage"] = job.ErrorMessage
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleVideoStream(w http.ResponseWriter, r *http.Request, id string) {
	video, ok := s.lookupVideo(w, r, id)
	if !ok {
		return
	}
	if video.ProcessedFilePath == "" {
		writeError(w, http.StatusConflict, "not_ready")
		return
	}
	file, err := os.Open(video.ProcessedFilePath)
	if err != nil {
		writeError(w, http.StatusNotFound, "processed file missing")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stat processed file")
		return
	}

	session := s.daemon.sessions.Create(video.ID, video.ProcessedFilePath)
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("X-Stream-Session", session.ID)
	http.ServeContent(w, r, filepath.Base(video.ProcessedFilePath), info.ModTime(), file)
}

func (s *apiServer) handleVideoDownload(w http.ResponseWriter, r *http.Request, id string) {
	video, ok := s.lookupVideo(w, r, id)
	if !ok {
		return
	}
	if video.ProcessedFilePath == "" {
		writeError(w, http.StatusConflict, "not_ready")
		return
	}
	name := strings.TrimSuffix(video.OriginalName, filepath.Ext(video.OriginalName)) + "_smoothed.mp4"
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, video.ProcessedFilePath)
}

func (s *apiServer) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	drafts, err := s.daemon.store.ListDrafts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list drafts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (s *apiServer) handleDraftByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/drafts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "draft id required")
		return
	}
	removed, err := s.daemon.store.DeleteDraft(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete draft")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"running":      status.Running,
		"pid":          status.PID,
		"databasePath": status.DatabasePath,
		"lockFilePath": status.LockFilePath,
		"jobs":         status.Jobs,
		"inFlight":     status.InFlight,
		"sessions":     status.Sessions,
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, detail, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, detail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "detail": detail})
}

func (s *apiServer) lookupVideo(w http.ResponseWriter, r *http.Request, id string) (*store.Video, bool) {
	video, err := s.daemon.store.GetVideo(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load video")
		return nil, false
	}
	if video == nil {
		writeError(w, http.StatusNotFound, "video not found")
		return nil, false
	}
	return video, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
