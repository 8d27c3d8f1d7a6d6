package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryEntry struct {
	session    Session
	lastAccess time.Time
}

// MemoryStore keeps sessions in process memory and drops the ones idle for
// longer than the TTL.
type MemoryStore struct {
	sessions      map[string]*memoryEntry
	mu            sync.RWMutex
	ttl           time.Duration
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	stopOnce      sync.Once
	logger        *slog.Logger
	now           func() time.Time
}

// NewMemoryStore creates a memory store and starts its cleanup goroutine.
// Call Stop to release it.
func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	interval := ttl / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}

	m := &MemoryStore{
		sessions:      make(map[string]*memoryEntry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(interval),
		cleanupDone:   make(chan struct{}),
		logger:        logger,
		now:           time.Now,
	}

	go m.cleanupLoop()

	return m
}

// Get returns a copy of the session stored for state.
func (m *MemoryStore) Get(_ context.Context, state string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[state]
	if !ok || m.expired(e) {
		return nil, ErrNotFound
	}
	e.lastAccess = m.now()
	s := e.session
	return &s, nil
}

// Put stores a copy of s under state.
func (m *MemoryStore) Put(_ context.Context, state string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[state] = &memoryEntry{session: *s, lastAccess: m.now()}
	return nil
}

// Delete removes the session for state.
func (m *MemoryStore) Delete(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, state)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) expired(e *memoryEntry) bool {
	return m.now().Sub(e.lastAccess) > m.ttl
}

// removeExpired drops idle sessions and returns how many were removed.
func (m *MemoryStore) removeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for state, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, state)
			count++
		}
	}
	return count
}

func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.removeExpired(); n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}
