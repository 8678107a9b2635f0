// Package call runs live practice calls over WebSocket.
package call

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Manager tracks the live connection of each call session. A session has at
// most one connection; registering a new one closes the old.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]*websocket.Conn),
	}
}

// Active returns the live connection for a session, or nil.
func (m *Manager) Active(sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID]
}

// Count returns the number of live calls.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register makes conn the live connection for sessionID.
func (m *Manager) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	existing, exists := m.active[sessionID]
	m.active[sessionID] = conn
	m.mu.Unlock()

	if exists && existing != conn {
		// The close handshake needs the old reader to keep running.
		go func() {
			_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
		}()
	}
	slog.Info("Call registered", "session_id", sessionID)
}

// Unregister removes conn if it is still the live connection for sessionID.
func (m *Manager) Unregister(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[sessionID]; ok && current == conn {
		delete(m.active, sessionID)
		slog.Info("Call unregistered", "session_id", sessionID)
	}
}

// CloseAll ends every live call, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	for id, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		slog.Info("Call closed", "session_id", id)
	}
}
