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
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/openclaw/openclaw-node/pkg/auth"
	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

const (
	registrationTimeout = 10 * time.Second

	readBufferSize  = 1024
	writeBufferSize = 1024
)

// SessionHandler runs the server side of one node connection:
// authenticate, await registration, register, route messages, and tear
// down on exit.
type SessionHandler struct {
	authProvider auth.Provider
	registry     *Registry
	conns        *ConnTable
	router       *Router
	upgrader     websocket.Upgrader
	logger       logger.Logger
}

// NewSessionHandler creates the WebSocket session handler.
func NewSessionHandler(
	provider auth.Provider,
	registry *Registry,
	conns *ConnTable,
	router *Router,
	log logger.Logger,
) *SessionHandler {
	return &SessionHandler{
		authProvider: provider,
		registry:     registry,
		conns:        conns,
		router:       router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			// Node agents are not browsers; origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log,
	}
}

// ServeHTTP handles a node connection on /ws/{node_id}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade to WebSocket")
		return
	}

	conn := NewConn(ws)

	// Authentication happens after the upgrade so the agent receives a
	// distinct close code instead of a failed handshake.
	if !h.authenticate(r) {
		h.logger.Warn().Str("node_id", nodeID).Msg("Rejected unauthorized connection for node")
		_ = conn.Close(models.CloseUnauthorized, "Unauthorized")

		return
	}

	reg, ok := h.awaitRegistration(ws, conn, nodeID)
	if !ok {
		return
	}

	h.conns.Bind(nodeID, conn)
	h.registry.Register(nodeID, reg.Plugins, reg.Platform)

	h.logger.Info().
		Str("node_id", nodeID).
		Strs("plugins", reg.Plugins).
		Str("platform", reg.Platform).
		Msg("Node registered")

	ack := models.RegisteredMessage{Type: models.MessageTypeRegistered, NodeID: nodeID}
	if err := conn.WriteJSON(ack); err != nil {
		h.logger.Error().Err(err).Str("node_id", nodeID).Msg("Failed to send registration ack")
		h.teardown(nodeID, conn)

		return
	}

	h.readLoop(ws, nodeID)
	h.teardown(nodeID, conn)
}

// authenticate validates the bearer credential from the handshake request.
func (h *SessionHandler) authenticate(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}

	token := strings.TrimPrefix(header, "Bearer ")

	return token != "" && h.authProvider.Validate(r.Context(), token)
}

// awaitRegistration waits up to registrationTimeout for a register
// message. Anything else, or a timeout, closes the connection with a
// distinct code.
func (h *SessionHandler) awaitRegistration(ws *websocket.Conn, conn Conn, nodeID string) (*models.Envelope, bool) {
	_ = ws.SetReadDeadline(time.Now().Add(registrationTimeout))

	_, data, err := ws.ReadMessage()
	if err != nil {
		h.logger.Warn().Str("node_id", nodeID).Msg("Node timed out waiting for registration")
		_ = conn.Close(models.CloseRegistrationTimeout, "Registration timeout")

		return nil, false
	}

	_ = ws.SetReadDeadline(time.Time{})

	msg, err := models.DecodeEnvelope(data)
	if err != nil || msg.Type != models.MessageTypeRegister {
		h.logger.Warn().
			Str("node_id", nodeID).
			Str("type", messageType(msg)).
			Msg("Expected register message")
		_ = conn.Close(models.CloseBadRegistration, "Expected register message")

		return nil, false
	}

	return msg, true
}

// readLoop routes active-session traffic until the connection fails or
// closes: heartbeats touch the registry, messages carrying a command id
// go to the router, everything else is logged and ignored.
func (h *SessionHandler) readLoop(ws *websocket.Conn, nodeID string) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn().Err(err).Str("node_id", nodeID).Msg("Node connection closed unexpectedly")
			} else {
				h.logger.Info().Str("node_id", nodeID).Msg("Node disconnected")
			}

			return
		}

		msg, err := models.DecodeEnvelope(data)
		if err != nil {
			h.logger.Warn().Err(err).Str("node_id", nodeID).Msg("Dropping undecodable message")
			continue
		}

		switch {
		case msg.Type == models.MessageTypeHeartbeat:
			h.registry.TouchHeartbeat(nodeID)

		case msg.ID != "":
			h.router.HandleResponse(msg)

		default:
			h.logger.Warn().
				Str("node_id", nodeID).
				Str("type", msg.Type).
				Msg("Ignoring unrecognized message")
		}
	}
}

// teardown makes the node unreachable, then removes its record, then
// cancels its pending commands — in that order, so nothing dispatches to
// a half-torn-down node. A session that lost its binding to a newer
// connection skips the rest: the new session owns that state now.
func (h *SessionHandler) teardown(nodeID string, conn Conn) {
	if !h.conns.UnbindConn(nodeID, conn) {
		return
	}

	h.registry.Unregister(nodeID)

	if cancelled := h.router.CancelPending(nodeID); cancelled > 0 {
		h.logger.Info().
			Int("cancelled", cancelled).
			Str("node_id", nodeID).
			Msg("Cancelled pending commands for node")
	}
}

func messageType(msg *models.Envelope) string {
	if msg == nil {
		return ""
	}

	return msg.Type
}
