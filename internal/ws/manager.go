// Package ws tracks the live progress connection of each extraction
// session and pushes pipeline updates to it.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/model"
	"github.com/sells-group/extraction-service/internal/session"
)

// conn is one attached client. Writes are serialized per connection;
// gorilla/websocket forbids concurrent writers.
type conn struct {
	mu       sync.Mutex
	ws       *websocket.Conn
	lastSeen time.Time
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Manager maps session ids to their single progress connection. A session
// has at most one connection; attaching a second replaces the first. When
// a connection goes away, so does its session: the client owns the job's
// lifetime in the push model.
type Manager struct {
	store            *session.Store
	heartbeatTimeout time.Duration
	sweepInterval    time.Duration

	mu    sync.Mutex
	conns map[string]*conn
}

// NewManager creates a connection manager. Sessions whose connection has
// not been heard from within heartbeatTimeout are torn down by Run.
func NewManager(store *session.Store, heartbeatTimeout, sweepInterval time.Duration) *Manager {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 60 * time.Second
	}
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Second
	}
	return &Manager{
		store:            store,
		heartbeatTimeout: heartbeatTimeout,
		sweepInterval:    sweepInterval,
		conns:            make(map[string]*conn),
	}
}

// Attach registers the connection for a session, replacing and closing
// any previous one.
func (m *Manager) Attach(sessionID string, ws *websocket.Conn) {
	m.mu.Lock()
	old, had := m.conns[sessionID]
	m.conns[sessionID] = &conn{ws: ws, lastSeen: time.Now()}
	m.mu.Unlock()

	if had {
		_ = old.ws.Close()
	}
	zap.L().Info("progress connection attached", zap.String("session_id", sessionID))
}

// Send delivers one JSON message to the session's connection, if any.
// A write failure detaches the connection and tears the session down.
func (m *Manager) Send(sessionID string, v any) bool {
	m.mu.Lock()
	c, ok := m.conns[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.writeJSON(v); err != nil {
		zap.L().Warn("progress write failed, detaching",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		m.Detach(sessionID, true)
		return false
	}
	return true
}

// Touch records that the session's client is alive.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	if c, ok := m.conns[sessionID]; ok {
		c.lastSeen = time.Now()
	}
	m.mu.Unlock()
}

// Detach closes and forgets the session's connection. When deleteSession
// is set the session itself is removed, cancelling in-flight work.
func (m *Manager) Detach(sessionID string, deleteSession bool) {
	m.mu.Lock()
	c, ok := m.conns[sessionID]
	if ok {
		delete(m.conns, sessionID)
	}
	m.mu.Unlock()

	if ok {
		_ = c.ws.Close()
		zap.L().Info("progress connection detached", zap.String("session_id", sessionID))
	}
	if deleteSession {
		m.store.Delete(sessionID)
	}
}

// Len reports the number of attached connections.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Run pings attached clients and reaps the ones that stopped answering,
// until ctx is canceled. Intended to run as a singleton goroutine next to
// the HTTP server.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	stale := make([]string, 0)
	live := make(map[string]*conn, len(m.conns))
	for id, c := range m.conns {
		if now.Sub(c.lastSeen) > m.heartbeatTimeout {
			stale = append(stale, id)
		} else {
			live[id] = c
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		zap.L().Warn("heartbeat timeout, dropping session", zap.String("session_id", id))
		m.Detach(id, true)
	}
	ping := model.ClientMessage{Type: model.MsgPing}
	for id, c := range live {
		if err := c.writeJSON(ping); err != nil {
			m.Detach(id, true)
		}
	}
}
