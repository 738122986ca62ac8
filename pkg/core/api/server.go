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

// Package api provides the HTTP administrative surface for the node
// server: fleet listing, node detail, and remote command execution.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/openclaw/openclaw-node/pkg/core"
	"github.com/openclaw/openclaw-node/pkg/logger"
)

// Server exposes the admin REST API over a mux router.
type Server struct {
	registry *core.Registry
	conns    *core.ConnTable
	router   *core.Router
	mux      *mux.Router
	api      *mux.Router
	logger   logger.Logger
}

// NewServer creates the admin API server and registers its routes.
func NewServer(registry *core.Registry, conns *core.ConnTable, cmdRouter *core.Router, log logger.Logger) *Server {
	s := &Server{
		registry: registry,
		conns:    conns,
		router:   cmdRouter,
		mux:      mux.NewRouter(),
		logger:   log,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	api := s.mux.PathPrefix("/api").Subrouter()
	api.Use(RequestLogging(s.logger))
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/nodes", s.handleListNodes).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{node_id}", s.handleGetNode).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{node_id}/exec", s.handleExec).Methods(http.MethodPost)
	api.HandleFunc("/plugins", s.handleListPlugins).Methods(http.MethodGet)

	s.api = api
}

// UseAPIKey guards the admin endpoints with a shared key. The WebSocket
// endpoint is unaffected; nodes authenticate with bearer tokens.
func (s *Server) UseAPIKey(key string) {
	s.api.Use(APIKey(key, s.logger))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Router returns the underlying mux router so callers can mount
// additional handlers (the WebSocket endpoint) beside the API.
func (s *Server) Router() *mux.Router {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		NodesConnected:  s.conns.Count(),
		PendingCommands: s.router.PendingCount(),
	})
}

func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.registry.ListAll()

	out := make([]NodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeSummary{
			NodeID:      n.NodeID,
			ConnectedAt: n.ConnectedAt.Format(time.RFC3339),
			Plugins:     n.Plugins,
			Platform:    n.Platform,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]

	node := s.registry.Get(nodeID)
	if node == nil {
		writeError(w, http.StatusNotFound, "Node not found: "+nodeID)
		return
	}

	var lastHeartbeat *string

	if node.LastHeartbeat != nil {
		hb := node.LastHeartbeat.Format(time.RFC3339)
		lastHeartbeat = &hb
	}

	writeJSON(w, http.StatusOK, NodeDetail{
		NodeID:          node.NodeID,
		ConnectedAt:     node.ConnectedAt.Format(time.RFC3339),
		Plugins:         node.Plugins,
		Platform:        node.Platform,
		LastHeartbeat:   lastHeartbeat,
		PendingCommands: len(s.router.PendingForNode(nodeID)),
	})
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]

	node := s.registry.Get(nodeID)
	if node == nil {
		writeError(w, http.StatusNotFound, "Node not found: "+nodeID)
		return
	}

	var req ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate the action before any transport I/O.
	plugin, _, ok := strings.Cut(req.Action, ".")
	if !ok || plugin == "" {
		writeError(w, http.StatusBadRequest,
			"Invalid action format: "+req.Action+". Expected 'plugin.action'")

		return
	}

	if !node.HasPlugin(plugin) {
		writeError(w, http.StatusBadRequest,
			"Plugin '"+plugin+"' not available on node '"+nodeID+"'")

		return
	}

	result, err := s.router.Dispatch(r.Context(), nodeID, req.Action, req.Params, req.Timeout.Duration())
	if err != nil {
		s.writeDispatchError(w, nodeID, req.Action, err)
		return
	}

	writeJSON(w, http.StatusOK, ExecResponse{
		Status:    "success",
		CommandID: result.ID,
		Result:    result.Result,
	})
}

// writeDispatchError maps dispatch failures to client-addressable
// results: timeouts and remote errors are 200s with a status field,
// connectivity problems are HTTP errors.
func (s *Server) writeDispatchError(w http.ResponseWriter, nodeID, action string, err error) {
	var (
		timeoutErr *core.CommandTimeoutError
		remoteErr  *core.RemoteExecutionError
		lostErr    *core.ConnectionLostError
	)

	switch {
	case errors.As(err, &timeoutErr):
		s.logger.Warn().Str("node_id", nodeID).Str("action", action).Msg("Command timeout")
		writeJSON(w, http.StatusOK, ExecResponse{
			Status:    "timeout",
			CommandID: timeoutErr.CommandID,
			Error: map[string]interface{}{
				"type":       "CommandTimeout",
				"message":    timeoutErr.Error(),
				"command_id": timeoutErr.CommandID,
				"action":     timeoutErr.Action,
				"timeout":    timeoutErr.Timeout.Seconds(),
			},
		})

	case errors.As(err, &remoteErr):
		s.logger.Warn().Str("node_id", nodeID).Str("action", action).Msg("Command error")
		writeJSON(w, http.StatusOK, ExecResponse{
			Status:    "error",
			CommandID: remoteErr.CommandID,
			Error: map[string]interface{}{
				"type":         "CommandError",
				"message":      remoteErr.Error(),
				"command_id":   remoteErr.CommandID,
				"action":       remoteErr.Action,
				"client_error": remoteErr.Message,
			},
		})

	case errors.Is(err, core.ErrNodeNotConnected):
		writeError(w, http.StatusConflict, "Node not connected: "+nodeID)

	case errors.As(err, &lostErr):
		writeError(w, http.StatusBadGateway, "Node disconnected during command: "+nodeID)

	default:
		s.logger.Error().Err(err).Str("node_id", nodeID).Str("action", action).Msg("Unexpected dispatch error")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := make(map[string][]string)

	for _, node := range s.registry.ListAll() {
		for _, plugin := range node.Plugins {
			plugins[plugin] = append(plugins[plugin], node.NodeID)
		}
	}

	writeJSON(w, http.StatusOK, PluginsResponse{Plugins: plugins})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
