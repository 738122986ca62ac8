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

import "sync"

// pendingTable holds the in-flight commands. Entries are inserted and
// removed under one mutex; removal transfers resolution ownership to the
// caller, which is what makes resolution exactly-once.
type pendingTable struct {
	mu      sync.Mutex
	pending map[string]*pendingCommand
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		pending: make(map[string]*pendingCommand),
	}
}

func (t *pendingTable) put(p *pendingCommand) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[p.id] = p
}

// take removes and returns the entry for id. The second return is false
// when the entry was absent or already taken by another path.
func (t *pendingTable) take(id string) (*pendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}

	return p, ok
}

// takeForNode removes and returns every entry targeting nodeID.
func (t *pendingTable) takeForNode(nodeID string) []*pendingCommand {
	t.mu.Lock()
	defer t.mu.Unlock()

	var taken []*pendingCommand

	for id, p := range t.pending {
		if p.nodeID == nodeID {
			taken = append(taken, p)
			delete(t.pending, id)
		}
	}

	return taken
}

func (t *pendingTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

func (t *pendingTable) infoForNode(nodeID string) []PendingInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []PendingInfo

	for _, p := range t.pending {
		if p.nodeID == nodeID {
			out = append(out, PendingInfo{
				CommandID: p.id,
				Action:    p.action,
				NodeID:    p.nodeID,
				CreatedAt: p.createdAt,
			})
		}
	}

	return out
}
