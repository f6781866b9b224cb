// Package session owns exploration sessions: their uploaded files, the
// selected table, preview settings and question history.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/data-explorer/backend/internal/history"
	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/parser"
	"github.com/data-explorer/backend/internal/query"
	"github.com/data-explorer/backend/internal/storage"
	"github.com/google/uuid"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionKeepAliveWindow is how long a recently touched session is protected
// from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrFileNotFound       = errors.New("file not found in session")
	ErrFileNotQueryable   = errors.New("file could not be read and cannot be selected")
	ErrNoFileSelected     = errors.New("no file selected")
	ErrInvalidPreviewRows = fmt.Errorf("preview rows must be between %d and %d", models.MinPreviewRows, models.MaxPreviewRows)
	ErrEmptyQuestion      = errors.New("question must not be empty")
)

// Options configures a Manager.
type Options struct {
	TempDir     string
	MaxSessions int
	History     history.Options
	Duck        parser.DuckSettings
}

// DefaultOptions returns options using ./data/temp for DuckDB files.
func DefaultOptions() Options {
	return Options{
		TempDir:     "./data/temp",
		MaxSessions: MaxSessions,
		History:     history.DefaultOptions(),
		Duck:        parser.DefaultDuckSettings(),
	}
}

// Manager handles active exploration sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	store    storage.Store
	registry *parser.Registry
	engine   query.Engine
	opts     Options
	log      *slog.Logger
}

// SessionState holds one session, its history and its loaded tables.
type SessionState struct {
	mu      sync.Mutex
	Session *models.ExploreSession
	History *history.Tracker
	tables  map[string]*parser.DuckStore
	closed  bool
}

// NewManager creates a new session manager.
func NewManager(store storage.Store, registry *parser.Registry, engine query.Engine, opts Options) *Manager {
	if opts.TempDir == "" {
		opts.TempDir = DefaultOptions().TempDir
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if registry == nil {
		registry = parser.GetGlobalRegistry()
	}
	os.MkdirAll(opts.TempDir, 0755)

	m := &Manager{
		sessions: make(map[string]*SessionState),
		store:    store,
		registry: registry,
		engine:   engine,
		opts:     opts,
		log:      logger.Component("session"),
	}

	if n, err := parser.RemoveStaleStores(opts.TempDir); err != nil {
		m.log.Warn("scanning temp directory failed", "dir", opts.TempDir, "error", err)
	} else if n > 0 {
		m.log.Info("removed stale table stores", "count", n)
	}
	return m
}

// CreateSession starts an empty session. The least recently used session is
// evicted when the limit is reached.
func (m *Manager) CreateSession() *models.ExploreSession {
	now := time.Now()
	state := &SessionState{
		Session: &models.ExploreSession{
			ID:           uuid.New().String(),
			Files:        []*models.FileInfo{},
			PreviewRows:  models.DefaultPreviewRows,
			CreatedAt:    now,
			LastAccessed: now,
		},
		History: history.NewTracker(m.opts.History),
		tables:  make(map[string]*parser.DuckStore),
	}

	m.mu.Lock()
	for len(m.sessions) >= m.opts.MaxSessions {
		m.evictOldestLocked()
	}
	m.sessions[state.Session.ID] = state
	m.mu.Unlock()

	m.log.Info("session created", "session", state.Session.ID)
	return state.snapshot()
}

func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, state := range m.sessions {
		state.mu.Lock()
		last := state.Session.LastAccessed
		state.mu.Unlock()
		if oldestID == "" || last.Before(oldest) {
			oldestID, oldest = id, last
		}
	}
	if oldestID == "" {
		return
	}
	m.log.Info("evicting session to free memory", "session", oldestID)
	m.releaseLocked(oldestID)
}

// releaseLocked closes a session's tables, deletes its uploads and forgets it.
// Caller holds m.mu.
func (m *Manager) releaseLocked(id string) {
	state, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)

	state.mu.Lock()
	defer state.mu.Unlock()
	state.closed = true
	for fileID, ds := range state.tables {
		if err := ds.Close(); err != nil {
			m.log.Warn("closing table failed", "session", id, "file", fileID, "error", err)
		}
	}
	state.tables = map[string]*parser.DuckStore{}
	for _, f := range state.Session.Files {
		if err := m.store.Delete(f.ID); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			m.log.Warn("deleting upload failed", "session", id, "file", f.ID, "error", err)
		}
	}
	state.History.Clear()
}

// state looks up a session and marks it accessed.
func (m *Manager) state(id string) (*SessionState, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	state.mu.Lock()
	state.Session.LastAccessed = time.Now()
	state.mu.Unlock()
	return state, nil
}

// GetSession returns a snapshot of the session.
func (m *Manager) GetSession(id string) (*models.ExploreSession, error) {
	state, err := m.state(id)
	if err != nil {
		return nil, err
	}
	return state.snapshot(), nil
}

// TouchSession updates the last accessed time to keep the session alive.
func (m *Manager) TouchSession(id string) bool {
	_, err := m.state(id)
	return err == nil
}

// DeleteSession ends a session. Its history and files are destroyed.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.releaseLocked(id)
	m.log.Info("session deleted", "session", id)
	return nil
}

// CleanupOldSessions drops sessions idle for longer than maxAge. Sessions
// touched within SessionKeepAliveWindow are always kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if maxAge < SessionKeepAliveWindow {
		maxAge = SessionKeepAliveWindow
	}
	cutoff := time.Now().Add(-maxAge)

	removed := 0
	for id, state := range m.sessions {
		state.mu.Lock()
		last := state.Session.LastAccessed
		state.mu.Unlock()

		if last.Before(cutoff) {
			m.releaseLocked(id)
			removed++
			m.log.Info("cleaned up idle session", "session", id, "idle", time.Since(last).Round(time.Second))
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		m.releaseLocked(id)
	}
}

// snapshot copies the session for callers outside the lock.
func (s *SessionState) snapshot() *models.ExploreSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *s.Session
	out.Files = make([]*models.FileInfo, len(s.Session.Files))
	for i, f := range s.Session.Files {
		fc := *f
		out.Files[i] = &fc
	}
	out.HistoryCount = s.History.Len()
	return &out
}
