package streamsession

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
)

// ErrNotFound is returned when a session id is unknown or already expired.
var ErrNotFound = errors.New("stream session not found")

// Session represents one playback handle onto a processed artifact.
type Session struct {
	ID         string
	VideoID    string
	Path       string
	CreatedAt  time.Time
	lastAccess time.Time
}

// Manager tracks playback sessions and expires the ones that go idle.
type Manager struct {
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	done     chan struct{}
	once     sync.Once
}

// NewManager builds a session manager and starts its reaper.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	idle := time.Duration(cfg.Streaming.SessionIdleTimeout) * time.Second
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	reap := time.Duration(cfg.Streaming.ReapInterval) * time.Second
	if reap <= 0 {
		reap = time.Minute
	}

	m := &Manager{
		idleTimeout: idle,
		logger:      logging.NewComponentLogger(logger, "streamsession"),
		sessions:    make(map[string]*Session),
		done:        make(chan struct{}),
	}
	go m.reap(reap)
	return m
}

// Create registers a session for a video artifact and returns its id.
func (m *Manager) Create(videoID, path string) *Session {
	now := time.Now()
	session := &Session{
		ID:         uuid.NewString(),
		VideoID:    videoID,
		Path:       path,
		CreatedAt:  now,
		lastAccess: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.logger.Debug("session created",
		logging.String("session_id", session.ID),
		logging.String(logging.FieldVideoID, videoID))
	return session
}

// Get returns a live session and refreshes its idle clock.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	session.lastAccess = time.Now()
	return session, nil
}

// Destroy removes a session. Unknown ids are a no-op.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// DestroyForVideo removes every session pointing at a video, used when the
// video or its artifact is deleted.
func (m *Manager) DestroyForVideo(videoID string) {
	m.mu.Lock()
	for id, session := range m.sessions {
		if session.VideoID == videoID {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the reaper and drops all sessions.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.done)
	})
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
}

func (m *Manager) reap(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

func (m *Manager) expireIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)
	m.mu.Lock()
	for id, session := range m.sessions {
		if session.lastAccess.Before(cutoff) {
			delete(m.sessions, id)
			m.logger.Debug("session expired", logging.String("session_id", id))
		}
	}
	m.mu.Unlock()
}
