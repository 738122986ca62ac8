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

package api

import "github.com/openclaw/openclaw-node/pkg/models"

// HealthResponse reports server liveness and fleet counters.
type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	NodesConnected  int    `json:"nodes_connected"`
	PendingCommands int    `json:"pending_commands"`
}

// NodeSummary is the list view of a registered node.
type NodeSummary struct {
	NodeID      string   `json:"node_id"`
	ConnectedAt string   `json:"connected_at"`
	Plugins     []string `json:"plugins"`
	Platform    string   `json:"platform"`
}

// NodeDetail is the detail view of a registered node.
type NodeDetail struct {
	NodeID          string   `json:"node_id"`
	ConnectedAt     string   `json:"connected_at"`
	Plugins         []string `json:"plugins"`
	Platform        string   `json:"platform"`
	LastHeartbeat   *string  `json:"last_heartbeat"`
	PendingCommands int      `json:"pending_commands"`
}

// ExecRequest asks the server to run an action on a node.
type ExecRequest struct {
	Action  string                 `json:"action"`
	Params  map[string]interface{} `json:"params"`
	Timeout models.Duration        `json:"timeout,omitempty"`
}

// ExecResponse reports the outcome of a dispatched command. Status is
// one of success, timeout, or error.
type ExecResponse struct {
	Status    string                 `json:"status"`
	CommandID string                 `json:"command_id,omitempty"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     map[string]interface{} `json:"error,omitempty"`
}

// PluginsResponse maps each capability to the node ids exposing it.
type PluginsResponse struct {
	Plugins map[string][]string `json:"plugins"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
