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

package models

import "time"

// NodeInfo describes a registered node. Created on registration, mutated
// only by heartbeat processing, destroyed on disconnect.
type NodeInfo struct {
	NodeID        string     `json:"node_id"`
	ConnectedAt   time.Time  `json:"connected_at"`
	Plugins       []string   `json:"plugins"`
	Platform      string     `json:"platform"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// HasPlugin reports whether the node declared the named capability.
func (n *NodeInfo) HasPlugin(name string) bool {
	for _, p := range n.Plugins {
		if p == name {
			return true
		}
	}

	return false
}
