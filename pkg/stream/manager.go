package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const cleanupInterval = 30 * time.Second

// Manager tracks active stream sessions and reaps idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager. Sessions idle for longer than
// timeout are closed and removed; a timeout of zero disables reaping.
func NewManager(timeout time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	go m.cleanupLoop()
	return m
}

// CreateSession creates and registers a new session.
func (m *Manager) CreateSession(cfg SessionConfig) (*Session, error) {
	session, err := NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	log.Printf("[Manager] session %s created (%d Hz)", session.ID(), session.SampleRate())
	return session, nil
}

// GetSession retrieves a registered session by ID.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// SessionCount returns the number of registered sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RemoveSession closes a session and drops it from the registry. It
// reports whether the session existed.
func (m *Manager) RemoveSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	if err := session.Close(ctx); err != nil {
		log.Printf("[Manager] failed to close session %s: %v", id, err)
	}

	stats := session.Stats()
	log.Printf("[Manager] session %s removed: %d frames, %d segments",
		id, stats.FramesProcessed, stats.SegmentsEmitted)
	return true
}

// Stop closes all sessions and halts the cleanup loop.
func (m *Manager) Stop(ctx context.Context) {
	m.cancel()
	<-m.cleanup

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		if err := session.Close(ctx); err != nil {
			log.Printf("[Manager] failed to close session %s: %v", session.ID(), err)
		}
	}

	log.Printf("[Manager] stopped, %d sessions closed", len(sessions))
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanup)

	if m.timeout <= 0 {
		<-m.ctx.Done()
		return
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reapIdleSessions()
		}
	}
}

func (m *Manager) reapIdleSessions() {
	now := time.Now()

	m.mu.RLock()
	var expired []string
	for id, session := range m.sessions {
		if now.Sub(session.LastActivity()) > m.timeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		log.Printf("[Manager] reaping idle session %s", id)
		m.RemoveSession(m.ctx, id)
	}
}
