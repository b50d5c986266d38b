// Package manager implements the process-wide registry of Stream Sessions:
// it serializes stream creation and removal, and routes output-path lookups
// for the outward file server.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dashcast/dashcast/internal/fetcher"
	"github.com/dashcast/dashcast/internal/session"
	"github.com/dashcast/dashcast/internal/storage"
)

// Manager owns every active Session. Sessions never reach back into the
// Manager: Manager -> Session -> {Writer, Decryptor} is a strict tree with
// no cycles.
type Manager struct {
	baseDir         string
	fetcher         fetcher.Fetcher
	logger          *slog.Logger
	defaultToolPath string
	maxSessions     int

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New constructs a Manager rooted at baseDir: every stream's output lives
// at "<baseDir>/<stream_id>" unless its config overrides OutputDir.
func New(baseDir string, f fetcher.Fetcher, logger *slog.Logger, defaultToolPath string, maxSessions int) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSessions <= 0 {
		maxSessions = 64
	}
	return &Manager{
		baseDir:         baseDir,
		fetcher:         f,
		logger:          logger,
		defaultToolPath: defaultToolPath,
		maxSessions:     maxSessions,
		sessions:        make(map[string]*session.Session),
	}
}

// AddStream generates a stream id, builds a Session rooted under the
// manager's base directory (unless cfg overrides OutputDir), stores it, and
// starts its pipeline. The add is fully serialized under the manager's
// mutex so concurrent calls never collide on an id or the session map.
func (m *Manager) AddStream(ctx context.Context, cfg session.Config) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("maximum concurrent streams (%d) reached", m.maxSessions)
	}

	id := uuid.NewString()
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(m.baseDir, id)
	}

	sess, err := session.New(id, cfg, m.fetcher, m.logger, m.defaultToolPath, outputDir)
	if err != nil {
		return nil, err
	}

	m.sessions[id] = sess
	sess.Start(ctx)

	m.logger.Info("stream added", slog.String("stream_id", id), slog.String("mpd_url", cfg.MPDURL))
	return sess, nil
}

// RemoveStream stops and forgets a session. Returns false if the id is
// unknown.
func (m *Manager) RemoveStream(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	sess.Stop()
	m.logger.Info("stream removed", slog.String("stream_id", id))
	return true
}

// Get returns the session for id, if any.
func (m *Manager) Get(id string) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// List returns a snapshot of every active session's info, ordered by
// stream id for deterministic output.
func (m *Manager) List() []session.Info {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]session.Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// OutputPath returns the output root directory for id so the outward file
// server can resolve requested file paths against it. Callers MUST reject
// any resolved path that escapes this root.
func (m *Manager) OutputPath(id string) (string, bool) {
	sess, ok := m.Get(id)
	if !ok {
		return "", false
	}
	return sess.OutputDir(), true
}

// Sandbox returns the confined filesystem sandbox rooted at id's output
// directory, used by the outward file server to resolve requested paths
// without ever escaping the session's tree.
func (m *Manager) Sandbox(id string) (*storage.Sandbox, bool) {
	sess, ok := m.Get(id)
	if !ok {
		return nil, false
	}
	return sess.Sandbox(), true
}

// Shutdown stops every active session, used on process shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}
