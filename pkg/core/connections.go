/*
 * Copyright 2025 The OpenClaw Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

const closeWriteTimeout = 5 * time.Second

// Conn is the transport handle bound to a node. It hides the underlying
// WebSocket so router logic never touches transport internals.
type Conn interface {
	WriteJSON(v interface{}) error
	Close(code int, reason string) error
}

// wsConn adapts a gorilla connection. Gorilla permits one concurrent
// writer, and both the session handler and the command router send on a
// server-side connection, so writes are serialized here.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConn wraps a WebSocket connection in a write-safe transport handle.
func NewConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))

	return c.conn.Close()
}

// ConnTable maps node ids to their active transport handle, enforcing at
// most one live handle per id. All mutation happens under one mutex so a
// bind cannot race an unbind during connection replacement.
type ConnTable struct {
	mu     sync.Mutex
	conns  map[string]Conn
	logger logger.Logger
}

// NewConnTable creates an empty connection table.
func NewConnTable(log logger.Logger) *ConnTable {
	return &ConnTable{
		conns:  make(map[string]Conn),
		logger: log,
	}
}

// Bind registers a transport for a node id. An existing handle for the
// same id is closed best-effort with CloseReplaced and discarded.
func (t *ConnTable) Bind(nodeID string, conn Conn) {
	t.mu.Lock()
	old := t.conns[nodeID]
	t.conns[nodeID] = conn
	t.mu.Unlock()

	if old != nil {
		if err := old.Close(models.CloseReplaced, "Replaced by new connection"); err != nil {
			t.logger.Debug().Err(err).Str("node_id", nodeID).Msg("Error closing replaced connection")
		}

		t.logger.Warn().Str("node_id", nodeID).Msg("Replaced existing connection for node")
	}
}

// Unbind removes the binding for a node id regardless of which handle
// holds it.
func (t *ConnTable) Unbind(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.conns, nodeID)
}

// UnbindConn removes the binding only if conn is still the bound handle.
// It reports whether the caller owned the binding; a session replaced by
// a newer connection gets false and must not tear down the new session's
// state.
func (t *ConnTable) UnbindConn(nodeID string, conn Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conns[nodeID] != conn {
		return false
	}

	delete(t.conns, nodeID)

	return true
}

// Send delivers a message to the named node. Returns ErrNodeNotConnected
// when no handle is bound.
func (t *ConnTable) Send(nodeID string, message interface{}) error {
	t.mu.Lock()
	conn, ok := t.conns[nodeID]
	t.mu.Unlock()

	if !ok {
		return ErrNodeNotConnected
	}

	return conn.WriteJSON(message)
}

// Broadcast sends a message to every connected node except excludeID,
// continuing past per-recipient failures. Returns the recipient count.
func (t *ConnTable) Broadcast(message interface{}, excludeID string) int {
	t.mu.Lock()
	targets := make(map[string]Conn, len(t.conns))
	for nodeID, conn := range t.conns {
		targets[nodeID] = conn
	}
	t.mu.Unlock()

	sent := 0

	for nodeID, conn := range targets {
		if nodeID == excludeID {
			continue
		}

		if err := conn.WriteJSON(message); err != nil {
			t.logger.Error().Err(err).Str("node_id", nodeID).Msg("Failed to broadcast to node")
			continue
		}

		sent++
	}

	return sent
}

// IsBound reports whether a transport is bound for the node id.
func (t *ConnTable) IsBound(nodeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.conns[nodeID]

	return ok
}

// List returns the ids of all connected nodes.
func (t *ConnTable) List() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.conns))
	for nodeID := range t.conns {
		out = append(out, nodeID)
	}

	return out
}

// Count returns the number of bound connections.
func (t *ConnTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.conns)
}
