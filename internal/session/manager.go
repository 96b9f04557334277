package session

import (
	"context"
	"log"
	"sync"

	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
)

// Manager is the process-wide session registry: session id to in-memory
// shadow state, with lifecycle tied to connection open/close. The external
// store stays authoritative; the registry only caches what the realtime
// pipeline mutates.
type Manager struct {
	store    interfaces.Store
	mu       sync.Mutex
	sessions map[string]*Handle
}

// NewManager creates a session registry backed by the external store.
func NewManager(store interfaces.Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Handle),
	}
}

// Open validates the session exists in the external store and returns its
// handle, creating the in-memory shadow on first open. Concurrent opens for
// the same id are idempotent: later opens join the existing handle. The
// second return reports whether this call created the shadow.
//
// A missing store record returns interfaces.ErrSessionNotFound; the caller
// must close the connection immediately without creating partial state.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Handle, bool, error) {
	if sessionID == "" {
		return nil, false, ErrEmptySessionID
	}

	m.mu.Lock()
	if handle, exists := m.sessions[sessionID]; exists {
		handle.addRef()
		m.mu.Unlock()
		return handle, false, nil
	}
	m.mu.Unlock()

	// Store lookup happens outside the registry lock; it may block.
	record, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another open may have won the race while we queried the store.
	if handle, exists := m.sessions[sessionID]; exists {
		handle.addRef()
		return handle, false, nil
	}

	handle := newHandle(record)
	m.sessions[sessionID] = handle
	log.Printf("Session opened: id=%s user=%s scenario=%s finished=%t",
		record.ID, record.UserID, record.ScenarioID, record.Finished)
	return handle, true, nil
}

// Get returns the handle for an open session.
func (m *Manager) Get(sessionID string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, exists := m.sessions[sessionID]
	return handle, exists
}

// Release drops one reference to a session. When the last connection
// releases, the shadow is removed and the handle marked closed so in-flight
// detached tasks drop their results instead of resurrecting the session.
// Returns true when this release removed the shadow.
func (m *Manager) Release(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, exists := m.sessions[sessionID]
	if !exists {
		return false
	}

	if handle.dropRef() > 0 {
		return false
	}

	delete(m.sessions, sessionID)
	handle.markClosed()
	log.Printf("Session released: id=%s", sessionID)
	return true
}

// Count reports how many sessions currently hold in-memory state.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
