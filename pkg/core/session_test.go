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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-node/pkg/auth"
	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

const testToken = "ocn_session_test_token"

type sessionFixture struct {
	server   *httptest.Server
	registry *Registry
	conns    *ConnTable
	router   *Router
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	log := logger.NewTestLogger()

	provider, err := auth.NewTokenProvider("", log)
	require.NoError(t, err)
	provider.Add(testToken)

	registry := NewRegistry()
	conns := NewConnTable(log)
	cmdRouter := NewRouter(conns, 0, log)
	sessions := NewSessionHandler(provider, registry, conns, cmdRouter, log)

	r := mux.NewRouter()
	r.Handle("/ws/{node_id}", sessions)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &sessionFixture{
		server:   server,
		registry: registry,
		conns:    conns,
		router:   cmdRouter,
	}
}

func (f *sessionFixture) dial(t *testing.T, nodeID, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + nodeID

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { ws.Close() })

	return ws
}

// register completes the handshake and consumes the ack.
func (f *sessionFixture) register(t *testing.T, ws *websocket.Conn, nodeID string, plugins []string) {
	t.Helper()

	require.NoError(t, ws.WriteJSON(models.RegisterMessage{
		Type:     models.MessageTypeRegister,
		NodeID:   nodeID,
		Plugins:  plugins,
		Platform: "linux",
	}))

	var ack models.RegisteredMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&ack))
	require.Equal(t, models.MessageTypeRegistered, ack.Type)
	require.Equal(t, nodeID, ack.NodeID)
}

func expectClose(t *testing.T, ws *websocket.Conn, code int) {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := ws.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
}

func TestSessionRejectsMissingToken(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", "")
	expectClose(t, ws, models.CloseUnauthorized)

	assert.False(t, f.conns.IsBound("node1"))
	assert.Equal(t, 0, f.registry.Count())
}

func TestSessionRejectsInvalidToken(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", "wrong-token")
	expectClose(t, ws, models.CloseUnauthorized)
}

func TestSessionRejectsNonRegisterFirstMessage(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", testToken)
	require.NoError(t, ws.WriteJSON(models.HeartbeatMessage{Type: models.MessageTypeHeartbeat}))

	expectClose(t, ws, models.CloseBadRegistration)
	assert.Equal(t, 0, f.registry.Count())
}

func TestSessionRegisterFlow(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", testToken)
	f.register(t, ws, "node1", []string{"explorer"})

	require.Eventually(t, func() bool {
		return f.conns.IsBound("node1")
	}, 2*time.Second, 10*time.Millisecond)

	info := f.registry.Get("node1")
	require.NotNil(t, info)
	assert.Equal(t, []string{"explorer"}, info.Plugins)
	assert.Equal(t, "linux", info.Platform)
}

func TestSessionHeartbeatTouchesRegistry(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", testToken)
	f.register(t, ws, "node1", nil)

	require.NoError(t, ws.WriteJSON(models.HeartbeatMessage{Type: models.MessageTypeHeartbeat}))

	require.Eventually(t, func() bool {
		info := f.registry.Get("node1")
		return info != nil && info.LastHeartbeat != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionCommandRoundTrip(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", testToken)
	f.register(t, ws, "node1", []string{"explorer"})

	type dispatchResult struct {
		msg *models.Envelope
		err error
	}

	done := make(chan dispatchResult, 1)

	go func() {
		msg, err := f.router.Dispatch(context.Background(), "node1", "explorer.ping", map[string]interface{}{"probe": true}, 5*time.Second)
		done <- dispatchResult{msg: msg, err: err}
	}()

	// The agent side: read the command, echo a success response.
	var cmd models.CommandMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&cmd))
	require.Equal(t, "explorer.ping", cmd.Action)
	require.NotEmpty(t, cmd.ID)
	require.Equal(t, true, cmd.Params["probe"])

	require.NoError(t, ws.WriteJSON(models.ResponseMessage{
		ID:     cmd.ID,
		Status: models.StatusSuccess,
		Result: map[string]interface{}{"available": true},
	}))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, models.StatusSuccess, res.msg.Status)
		assert.Equal(t, true, res.msg.Result["available"])
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not complete")
	}

	assert.Equal(t, 0, f.router.PendingCount())
}

func TestSessionDisconnectCancelsPending(t *testing.T) {
	f := newSessionFixture(t)

	ws := f.dial(t, "node1", testToken)
	f.register(t, ws, "node1", nil)

	errs := make(chan error, 1)

	go func() {
		_, err := f.router.Dispatch(context.Background(), "node1", "explorer.ping", nil, time.Minute)
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return f.router.PendingCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())

	select {
	case err := <-errs:
		var lostErr *ConnectionLostError
		require.ErrorAs(t, err, &lostErr)
		assert.Equal(t, "node1", lostErr.NodeID)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not observe the disconnect")
	}

	require.Eventually(t, func() bool {
		return f.registry.Count() == 0 && !f.conns.IsBound("node1")
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, f.router.PendingCount())
}

// A reconnect under the same node id displaces the previous session
// without tearing down the new session's registration.
func TestSessionReplacement(t *testing.T) {
	f := newSessionFixture(t)

	first := f.dial(t, "node1", testToken)
	f.register(t, first, "node1", []string{"explorer"})

	second := f.dial(t, "node1", testToken)
	f.register(t, second, "node1", []string{"explorer", "resolve"})

	expectClose(t, first, models.CloseReplaced)

	// The displaced session's teardown must not remove the new state.
	require.Eventually(t, func() bool {
		info := f.registry.Get("node1")
		return info != nil && len(info.Plugins) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, f.conns.IsBound("node1"))
	assert.Equal(t, 1, f.conns.Count())

	// The new connection still carries traffic.
	done := make(chan error, 1)

	go func() {
		_, err := f.router.Dispatch(context.Background(), "node1", "explorer.ping", nil, 5*time.Second)
		done <- err
	}()

	var cmd models.CommandMessage
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, second.ReadJSON(&cmd))
	require.NoError(t, second.WriteJSON(models.ResponseMessage{ID: cmd.ID, Status: models.StatusSuccess}))

	require.NoError(t, <-done)
}
