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

	"github.com/openclaw/openclaw-node/pkg/models"
)

// Registry tracks registered nodes in memory. State does not survive a
// restart; nodes re-register on reconnect.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*models.NodeInfo
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*models.NodeInfo),
	}
}

// Register records a node, overwriting any prior record for the same id.
func (r *Registry) Register(nodeID string, plugins []string, platform string) *models.NodeInfo {
	info := &models.NodeInfo{
		NodeID:      nodeID,
		ConnectedAt: time.Now().UTC(),
		Plugins:     plugins,
		Platform:    platform,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[nodeID] = info

	return info
}

// Unregister removes a node record. Unknown ids are a no-op.
func (r *Registry) Unregister(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, nodeID)
}

// Get returns a copy of the node record, or nil when unknown.
func (r *Registry) Get(nodeID string) *models.NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.nodes[nodeID]
	if !ok {
		return nil
	}

	cp := *info

	return &cp
}

// ListAll returns copies of every registered node record.
func (r *Registry) ListAll() []*models.NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.NodeInfo, 0, len(r.nodes))

	for _, info := range r.nodes {
		cp := *info
		out = append(out, &cp)
	}

	return out
}

// FindByPlugin returns the nodes that declared the named capability.
func (r *Registry) FindByPlugin(plugin string) []*models.NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.NodeInfo

	for _, info := range r.nodes {
		if info.HasPlugin(plugin) {
			cp := *info
			out = append(out, &cp)
		}
	}

	return out
}

// TouchHeartbeat updates the node's liveness timestamp. Unknown ids are a
// no-op.
func (r *Registry) TouchHeartbeat(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.nodes[nodeID]
	if !ok {
		return
	}

	now := time.Now().UTC()
	info.LastHeartbeat = &now
}

// Count returns the number of registered nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.nodes)
}
