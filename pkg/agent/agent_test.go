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

package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

func TestBackoffProgression(t *testing.T) {
	a := New(&Config{}, NewDispatcher("linux", logger.NewTestLogger()), logger.NewTestLogger())

	var delays []time.Duration
	for i := 0; i < 8; i++ {
		delays = append(delays, a.nextBackoff())
	}

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	assert.Equal(t, expected, delays)

	a.resetBackoff()
	assert.Equal(t, 1*time.Second, a.nextBackoff())
}

func TestHandleCommandInvalidAction(t *testing.T) {
	a := New(&Config{}, NewDispatcher("linux", logger.NewTestLogger()), logger.NewTestLogger())

	for _, action := range []string{"ping", "", ".ping", "explorer."} {
		resp := a.handleCommand(context.Background(), &models.Envelope{ID: "cmd-1", Action: action})

		assert.Equal(t, "cmd-1", resp.ID, "action %q", action)
		assert.Equal(t, models.StatusError, resp.Status, "action %q", action)
		assert.Contains(t, resp.Error, "Invalid action format", "action %q", action)
	}
}

func TestHandleCommandUnknownPlugin(t *testing.T) {
	a := New(&Config{}, NewDispatcher("linux", logger.NewTestLogger()), logger.NewTestLogger())

	resp := a.handleCommand(context.Background(), &models.Envelope{ID: "cmd-2", Action: "ghost.poke"})

	assert.Equal(t, "cmd-2", resp.ID)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "ghost")
}

func TestHandleCommandSuccess(t *testing.T) {
	d := NewDispatcher("linux", logger.NewTestLogger())

	p := newFakePlugin("files", "list")
	p.result = map[string]interface{}{"entries": []interface{}{"a.txt"}}
	require.NoError(t, d.Register(p))

	a := New(&Config{}, d, logger.NewTestLogger())

	resp := a.handleCommand(context.Background(), &models.Envelope{
		ID:     "cmd-3",
		Action: "files.list",
		Params: map[string]interface{}{"path": "/tmp"},
	})

	assert.Equal(t, "cmd-3", resp.ID)
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, []interface{}{"a.txt"}, resp.Result["entries"])
	assert.Empty(t, resp.Error)
}

func TestHandleCommandExecutionError(t *testing.T) {
	d := NewDispatcher("linux", logger.NewTestLogger())

	p := newFakePlugin("files", "list")
	p.execErr = errFakeExecution
	require.NoError(t, d.Register(p))

	a := New(&Config{}, d, logger.NewTestLogger())

	resp := a.handleCommand(context.Background(), &models.Envelope{ID: "cmd-4", Action: "files.list"})

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "execution blew up")
}

// fakeServer is a minimal server-side WebSocket endpoint for agent tests.
type fakeServer struct {
	server  *httptest.Server
	handler func(ws *websocket.Conn, nodeID string)
}

func newFakeServer(t *testing.T, handler func(ws *websocket.Conn, nodeID string)) *fakeServer {
	t.Helper()

	f := &fakeServer{handler: handler}

	upgrader := websocket.Upgrader{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer ws.Close()

		nodeID := strings.TrimPrefix(r.URL.Path, "/ws/")
		f.handler(ws, nodeID)
	}))

	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
}

func testAgentConfig(serverURL string) *Config {
	return &Config{
		NodeID:            "test-node",
		ServerURL:         serverURL,
		AuthToken:         "ocn_test",
		Platform:          "linux",
		HeartbeatInterval: models.Duration(50 * time.Millisecond),
	}
}

func TestAgentRegistersAndServesCommands(t *testing.T) {
	type session struct {
		reg       models.RegisterMessage
		resp      models.ResponseMessage
		heartbeat bool
	}

	sessions := make(chan session, 4)

	fs := newFakeServer(t, func(ws *websocket.Conn, nodeID string) {
		var s session

		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

		if err := ws.ReadJSON(&s.reg); err != nil {
			return
		}

		ack := models.RegisteredMessage{Type: models.MessageTypeRegistered, NodeID: nodeID}
		if err := ws.WriteJSON(ack); err != nil {
			return
		}

		cmd := models.CommandMessage{
			ID:     "cmd-1",
			Action: "files.list",
			Params: map[string]interface{}{"path": "/tmp"},
		}
		if err := ws.WriteJSON(cmd); err != nil {
			return
		}

		// The agent may interleave a heartbeat with the response.
		for !s.heartbeat || s.resp.ID == "" {
			var msg models.Envelope
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}

			switch {
			case msg.Type == models.MessageTypeHeartbeat:
				s.heartbeat = true
			case msg.ID != "":
				s.resp = models.ResponseMessage{
					ID:     msg.ID,
					Status: msg.Status,
					Result: msg.Result,
					Error:  msg.Error,
				}
			}
		}

		sessions <- s
	})

	d := NewDispatcher("linux", logger.NewTestLogger())
	require.NoError(t, d.Register(newFakePlugin("files", "list")))

	a := New(testAgentConfig(fs.url()), d, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- a.Run(ctx) }()

	select {
	case s := <-sessions:
		assert.Equal(t, models.MessageTypeRegister, s.reg.Type)
		assert.Equal(t, "test-node", s.reg.NodeID)
		assert.Equal(t, []string{"files"}, s.reg.Plugins)
		assert.Equal(t, "linux", s.reg.Platform)

		assert.Equal(t, "cmd-1", s.resp.ID)
		assert.Equal(t, models.StatusSuccess, s.resp.Status)
		assert.True(t, s.heartbeat, "agent should send heartbeats")
	case <-time.After(5 * time.Second):
		t.Fatal("fake server never completed the session")
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancelled run should return nil")
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop on context cancellation")
	}
}

func TestAgentStopsOnUnauthorizedClose(t *testing.T) {
	fs := newFakeServer(t, func(ws *websocket.Conn, _ string) {
		msg := websocket.FormatCloseMessage(models.CloseUnauthorized, "Unauthorized")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

		// Give the client a moment to read the close frame.
		_ = ws.SetReadDeadline(time.Now().Add(time.Second))
		_, _, _ = ws.ReadMessage()
	})

	a := New(testAgentConfig(fs.url()), NewDispatcher("linux", logger.NewTestLogger()), logger.NewTestLogger())

	done := make(chan error, 1)

	go func() { done <- a.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrUnauthorized)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop on unauthorized close")
	}
}

func TestAgentReconnectsAfterDrop(t *testing.T) {
	attempts := make(chan struct{}, 4)

	fs := newFakeServer(t, func(ws *websocket.Conn, nodeID string) {
		attempts <- struct{}{}

		var reg models.RegisterMessage

		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := ws.ReadJSON(&reg); err != nil {
			return
		}

		ack := models.RegisteredMessage{Type: models.MessageTypeRegistered, NodeID: nodeID}
		_ = ws.WriteJSON(ack)

		// Drop the connection right after registration.
	})

	a := New(testAgentConfig(fs.url()), NewDispatcher("linux", logger.NewTestLogger()), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = a.Run(ctx) }()

	// Registration resets the backoff to 1s, so the second attempt
	// arrives about a second after the first drop.
	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatalf("agent made %d connection attempts, expected at least 2", i)
		}
	}
}
