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

// Package models defines the wire messages and shared types for the
// OpenClaw node protocol.
package models

import "encoding/json"

// Message types exchanged over the node WebSocket connection.
const (
	MessageTypeRegister   = "register"
	MessageTypeRegistered = "registered"
	MessageTypeHeartbeat  = "heartbeat"
)

// WebSocket close codes used by the session protocol. Agents distinguish
// CloseUnauthorized (retry will not help without new credentials) from the
// transient codes.
const (
	CloseReplaced            = 4000
	CloseUnauthorized        = 4001
	CloseBadRegistration     = 4002
	CloseRegistrationTimeout = 4003
)

// Envelope is the decoded form of any inbound message. Type is set for
// control messages (register, heartbeat); ID is set for command responses.
type Envelope struct {
	Type     string                 `json:"type,omitempty"`
	ID       string                 `json:"id,omitempty"`
	NodeID   string                 `json:"node_id,omitempty"`
	Plugins  []string               `json:"plugins,omitempty"`
	Platform string                 `json:"platform,omitempty"`
	Action   string                 `json:"action,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Status   string                 `json:"status,omitempty"`
	Result   map[string]interface{} `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// DecodeEnvelope parses a raw JSON frame into an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	return &env, nil
}

// RegisterMessage is sent by an agent immediately after connecting.
type RegisterMessage struct {
	Type     string   `json:"type"`
	NodeID   string   `json:"node_id"`
	Plugins  []string `json:"plugins"`
	Platform string   `json:"platform"`
}

// RegisteredMessage acknowledges a successful registration.
type RegisteredMessage struct {
	Type   string `json:"type"`
	NodeID string `json:"node_id"`
}

// HeartbeatMessage is sent periodically by an agent; no reply is expected.
type HeartbeatMessage struct {
	Type string `json:"type"`
}

// CommandMessage is pushed from the server to a node.
type CommandMessage struct {
	ID     string                 `json:"id"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// ResponseMessage carries a node's result for a command, correlated by ID.
type ResponseMessage struct {
	ID     string                 `json:"id"`
	Status string                 `json:"status"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Response statuses reported by nodes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
