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

// Package agent implements the node-side persistent connection to the
// OpenClaw server: connect, register, heartbeat, execute commands, and
// reconnect with exponential backoff.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	backoffFloor             = 1 * time.Second
	backoffCeiling           = 60 * time.Second
	handshakeTimeout         = 10 * time.Second
)

// Agent maintains the persistent connection to the server and serves
// commands through its dispatcher.
type Agent struct {
	config     *Config
	dispatcher *Dispatcher
	logger     logger.Logger

	backoff time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	// writeMu serializes writes: the heartbeat sender and the command
	// loop share the transport for writing, never for reading.
	writeMu sync.Mutex
}

// New creates an agent from its config and a loaded dispatcher.
func New(config *Config, dispatcher *Dispatcher, log logger.Logger) *Agent {
	return &Agent{
		config:     config,
		dispatcher: dispatcher,
		logger:     log,
		backoff:    backoffFloor,
	}
}

// Run connects and serves until ctx is cancelled or the server rejects
// the agent's credential. Transport failures trigger reconnection with
// exponential backoff; a successful registration resets the backoff to
// its floor.
func (a *Agent) Run(ctx context.Context) error {
	for {
		err := a.connectAndServe(ctx)

		switch {
		case ctx.Err() != nil:
			return nil

		case errors.Is(err, ErrUnauthorized):
			a.logger.Error().Msg("Authentication failed. Check your token.")
			return err

		case err != nil:
			a.logger.Warn().Err(err).Msg("Connection error")
		}

		delay := a.nextBackoff()
		a.logger.Info().Dur("delay", delay).Msg("Reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// nextBackoff returns the current reconnect delay and doubles it for the
// next attempt, capped at the ceiling.
func (a *Agent) nextBackoff() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	delay := a.backoff

	a.backoff *= 2
	if a.backoff > backoffCeiling {
		a.backoff = backoffCeiling
	}

	return delay
}

func (a *Agent) resetBackoff() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.backoff = backoffFloor
}

// connectAndServe runs one connection attempt: dial, register, await the
// ack, then serve commands until the connection drops.
func (a *Agent) connectAndServe(ctx context.Context) error {
	url := strings.TrimSuffix(a.config.ServerURL, "/") + "/" + a.config.NodeID
	header := http.Header{"Authorization": []string{"Bearer " + a.config.AuthToken}}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}

		return fmt.Errorf("failed to connect to %s: %w", a.config.ServerURL, err)
	}

	a.setConn(conn)

	defer func() {
		a.setConn(nil)
		_ = conn.Close()
	}()

	a.logger.Info().Str("server_url", a.config.ServerURL).Msg("Connected to server")

	if err := a.register(conn); err != nil {
		return err
	}

	// Registration succeeded: the next failure starts over at the floor.
	a.resetBackoff()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// Close the transport when the caller stops the agent so the read
	// loop unblocks deterministically.
	wg.Add(1)

	go func() {
		defer wg.Done()
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()
		a.heartbeatLoop(sessionCtx)
	}()

	err = a.receiveLoop(sessionCtx, conn)

	cancel()
	wg.Wait()

	return err
}

func (a *Agent) setConn(conn *websocket.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conn = conn
}

// writeJSON serializes concurrent writers on the shared transport.
func (a *Agent) writeJSON(v interface{}) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return websocket.ErrCloseSent
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	return conn.WriteJSON(v)
}

// register sends the registration message and waits for the server ack.
func (a *Agent) register(conn *websocket.Conn) error {
	reg := models.RegisterMessage{
		Type:     models.MessageTypeRegister,
		NodeID:   a.config.NodeID,
		Plugins:  a.dispatcher.Plugins(),
		Platform: a.config.Platform,
	}

	if err := a.writeJSON(reg); err != nil {
		return fmt.Errorf("failed to send registration: %w", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return a.mapCloseError(err)
	}

	ack, err := models.DecodeEnvelope(data)
	if err != nil || ack.Type != models.MessageTypeRegistered {
		a.logger.Warn().Msg("Unexpected registration response")
		return nil
	}

	a.logger.Info().Str("node_id", ack.NodeID).Msg("Registration confirmed")

	return nil
}

// heartbeatLoop sends a heartbeat every configured interval until the
// session ends.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	interval := a.config.HeartbeatInterval.Duration()
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := models.HeartbeatMessage{Type: models.MessageTypeHeartbeat}
			if err := a.writeJSON(hb); err != nil {
				a.logger.Error().Err(err).Msg("Heartbeat error")
				return
			}

			a.logger.Debug().Msg("Sent heartbeat")
		}
	}
}

// receiveLoop serves incoming commands until the connection fails.
func (a *Agent) receiveLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return a.mapCloseError(err)
		}

		msg, err := models.DecodeEnvelope(data)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Dropping undecodable message")
			continue
		}

		// Control messages carry no command id and need no reply.
		if msg.ID == "" {
			continue
		}

		response := a.handleCommand(ctx, msg)
		if err := a.writeJSON(response); err != nil {
			return fmt.Errorf("failed to send response: %w", err)
		}
	}
}

// mapCloseError distinguishes "retry won't help" close codes from
// transient failures.
func (a *Agent) mapCloseError(err error) error {
	var closeErr *websocket.CloseError

	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case models.CloseUnauthorized:
			return ErrUnauthorized
		case models.CloseReplaced:
			return fmt.Errorf("connection replaced by another agent with the same node id: %w", err)
		}
	}

	return err
}

// handleCommand executes one command and synthesizes a response reusing
// the command id. Execution faults become error responses so one failing
// capability never kills the receive loop.
func (a *Agent) handleCommand(ctx context.Context, msg *models.Envelope) models.ResponseMessage {
	plugin, action, ok := strings.Cut(msg.Action, ".")
	if !ok || plugin == "" || action == "" {
		return errorResponse(msg.ID,
			fmt.Sprintf("Invalid action format: %s. Expected 'plugin.action'", msg.Action))
	}

	a.logger.Info().
		Str("action", msg.Action).
		Str("command_id", msg.ID).
		Msg("Executing command")

	result, err := a.dispatcher.Dispatch(ctx, plugin, action, msg.Params)
	if err != nil {
		a.logger.Error().Err(err).Str("action", msg.Action).Msg("Command execution failed")
		return errorResponse(msg.ID, err.Error())
	}

	return models.ResponseMessage{
		ID:     msg.ID,
		Status: models.StatusSuccess,
		Result: result,
	}
}

func errorResponse(id, text string) models.ResponseMessage {
	return models.ResponseMessage{
		ID:     id,
		Status: models.StatusError,
		Error:  text,
	}
}
